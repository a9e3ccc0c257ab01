package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// New creates an LED controller. A non-empty sysfsName binds the status LED
// to that /sys/class/leds entry; otherwise the board is detected from the
// device tree. Boards without a known LED get an in-memory controller.
func New(logger *slog.Logger, sysfsName string) Controller {
	if sysfsName != "" {
		logger.Info("Using configured status LED", "sysfs_name", sysfsName)
		return newSysfs(sysfsLEDPath, map[string]string{StatusLED: sysfsName})
	}

	boardModel := detectBoard(deviceTreeModelPath)
	logger.Debug("Detecting board for LED control", "board_model", boardModel)

	switch {
	case strings.Contains(boardModel, "NanoPC-T6"):
		logger.Info("Detected NanoPC-T6, using sysfs LED controller")
		return newSysfs(sysfsLEDPath, map[string]string{StatusLED: "sys_led"})
	case strings.Contains(boardModel, "Orange Pi"):
		logger.Info("Detected Orange Pi, using sysfs LED controller")
		return newSysfs(sysfsLEDPath, map[string]string{StatusLED: "green_led"})
	case strings.Contains(boardModel, "Raspberry Pi"):
		logger.Info("Detected Raspberry Pi, using sysfs LED controller")
		return newSysfs(sysfsLEDPath, map[string]string{StatusLED: "ACT"})
	default:
		logger.Info("No LED support detected, keeping the indication in memory", "board_model", boardModel)
		return newMemory(logger)
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
