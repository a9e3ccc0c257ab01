//go:build !linux

package bt8x8

import "github.com/smazurov/vbinode/internal/chips"

func setThreadPriority(chips.Priority) error {
	return nil
}
