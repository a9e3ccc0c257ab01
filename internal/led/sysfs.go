package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using the Linux sysfs LED interface.
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{root: root, leds: leds}
}

// Set applies a trigger for the pattern, then the brightness.
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	sysfsName, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("%w %q on this board", ErrUnknownLED, ledType)
	}

	ledPath := filepath.Join(s.root, sysfsName)
	if _, err := os.Stat(ledPath); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", ledType, ledPath, err)
	}

	if pattern != "" {
		if err := writeAttr(ledPath, "trigger", triggerFor(pattern)); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}

	// A running trigger owns the brightness.
	if pattern == PatternBlink || pattern == PatternHeartbeat {
		return nil
	}
	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := writeAttr(ledPath, "brightness", brightness); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

func triggerFor(pattern string) string {
	switch pattern {
	case PatternSolid:
		return "none"
	case PatternBlink:
		return "timer"
	case PatternHeartbeat:
		return "heartbeat"
	default:
		return pattern // raw trigger name
	}
}

func writeAttr(ledPath, name, value string) error {
	return os.WriteFile(filepath.Join(ledPath, name), []byte(value), 0o644)
}

func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	slices.Sort(types)
	return types
}

func (s *sysfs) Patterns() []string {
	return slices.Clone(allPatterns)
}
