package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/vbinode/internal/events"
)

// Indication is what the status LED shows.
type Indication struct {
	Enabled bool
	Pattern string
}

var (
	indicateOff       = Indication{Enabled: false, Pattern: PatternSolid}
	indicateStreaming = Indication{Enabled: true, Pattern: PatternSolid}
	indicateBound     = Indication{Enabled: true, Pattern: PatternBlink}
	indicateFailed    = Indication{Enabled: true, Pattern: PatternHeartbeat}
)

// Manager drives the status LED from acquisition events: solid while
// streaming, heartbeat after a failure, off when disabled.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger

	unsubs []func()

	mu      sync.Mutex
	current Indication
	applied bool
	failed  bool
}

// NewManager creates a manager; call Start to subscribe.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start turns the LED off and begins listening for acquisition events.
func (m *Manager) Start() {
	m.apply(indicateOff)
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(m.handleState),
		m.eventBus.Subscribe(m.handleFailure),
	)
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.apply(indicateOff)
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleState(e events.AcquisitionStateChangedEvent) {
	m.mu.Lock()
	if e.State == "streaming" {
		m.failed = false
	}
	failed := m.failed
	m.mu.Unlock()

	m.logger.Debug("Acquisition state changed", "state", e.State, "previous", e.Previous)
	if failed {
		return
	}
	switch e.State {
	case "streaming":
		m.apply(indicateStreaming)
	case "bound":
		m.apply(indicateBound)
	default:
		m.apply(indicateOff)
	}
}

func (m *Manager) handleFailure(e events.AcquisitionFailedEvent) {
	m.mu.Lock()
	m.failed = true
	m.mu.Unlock()

	m.logger.Debug("Acquisition failed", "operation", e.Operation, "code", e.Code)
	m.apply(indicateFailed)
}

func (m *Manager) apply(ind Indication) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied && ind == m.current {
		return
	}
	m.applied = true
	m.current = ind
	if err := m.controller.Set(StatusLED, ind.Enabled, ind.Pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", ind.Pattern, "error", err)
	}
}

// Current returns the last indication applied.
func (m *Manager) Current() Indication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// GetController returns the underlying LED controller.
func (m *Manager) GetController() Controller {
	return m.controller
}
