package led

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// memory is the controller for boards without a usable LED. It accepts
// the status LED and remembers what was requested so the API still
// reports the indication.
type memory struct {
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]Indication
}

func newMemory(logger *slog.Logger) *memory {
	return &memory{logger: logger, state: make(map[string]Indication)}
}

func (m *memory) Set(ledType string, enabled bool, pattern string) error {
	if ledType != StatusLED {
		return fmt.Errorf("%w %q", ErrUnknownLED, ledType)
	}
	if pattern != "" && !slices.Contains(allPatterns, pattern) {
		return fmt.Errorf("led: unknown pattern %q", pattern)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ind := m.state[ledType]
	ind.Enabled = enabled
	if pattern != "" {
		ind.Pattern = pattern
	}
	m.state[ledType] = ind
	m.logger.Debug("No LED on this board, indication kept in memory", "led", ledType, "enabled", enabled, "pattern", ind.Pattern)
	return nil
}

func (m *memory) Available() []string {
	return []string{StatusLED}
}

func (m *memory) Patterns() []string {
	return slices.Clone(allPatterns)
}

func (m *memory) get(ledType string) Indication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[ledType]
}
