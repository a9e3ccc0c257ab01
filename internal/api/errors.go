package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/chips"
)

// mapAcqError maps acquisition errors to HTTP errors. The user-facing
// message of the controller becomes the problem title.
func mapAcqError(err error) error {
	var ae *acq.Error
	if !errors.As(err, &ae) {
		return huma.Error500InternalServerError("internal server error", err)
	}
	switch ae.Code {
	case acq.CodeNoCards, acq.CodeCardIndexRange, acq.CodeDeviceNotFound:
		return huma.Error404NotFound(ae.Message, err)
	case acq.CodeDeviceBusy, acq.CodeCardInUse, acq.CodeSlaveMode, acq.CodeDisabled, acq.CodeNotScanned:
		return huma.Error409Conflict(ae.Message, err)
	case acq.CodeUnsupportedChip:
		return huma.Error422UnprocessableEntity(ae.Message, err)
	case acq.CodeDriverLoad, acq.CodeBackendUnavailable:
		return huma.Error503ServiceUnavailable(ae.Message, err)
	default:
		return huma.Error500InternalServerError(ae.Message, err)
	}
}

// formatChip renders a chip type as vendor:device, empty for zero.
func formatChip(chipType uint32) string {
	if chipType == 0 {
		return ""
	}
	vendor, device := chips.SplitChipType(chipType)
	return fmt.Sprintf("%04x:%04x", vendor, device)
}

// parseChip is the inverse of formatChip.
func parseChip(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	vendor, device, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("chip type %q is not vendor:device", s)
	}
	v, err := strconv.ParseUint(vendor, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("chip vendor %q: %w", vendor, err)
	}
	d, err := strconv.ParseUint(device, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("chip device %q: %w", device, err)
	}
	return chips.ChipType(uint16(v), uint16(d)), nil
}
