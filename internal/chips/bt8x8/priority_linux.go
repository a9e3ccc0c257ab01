//go:build linux

package bt8x8

import (
	"golang.org/x/sys/unix"

	"github.com/smazurov/vbinode/internal/chips"
)

// setThreadPriority renices the calling OS thread. Raising priority needs
// CAP_SYS_NICE; callers treat failure as non-fatal.
func setThreadPriority(p chips.Priority) error {
	nice := 0
	switch p {
	case chips.PriorityAboveNormal:
		nice = -5
	case chips.PriorityTimeCritical:
		nice = -15
	}
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}
