// Package led shows the acquisition state on a board LED.
package led

import "errors"

// StatusLED is the LED the manager drives.
const StatusLED = "status"

// Patterns understood by every controller.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
)

var allPatterns = []string{PatternSolid, PatternBlink, PatternHeartbeat}

// ErrUnknownLED is returned by Set for an LED the board does not have.
var ErrUnknownLED = errors.New("led: unknown LED")

// Controller sets board LEDs. An empty pattern leaves the trigger alone
// and only switches the LED on or off.
type Controller interface {
	Set(ledType string, enabled bool, pattern string) error
	Available() []string
	Patterns() []string
}
