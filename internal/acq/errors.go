package acq

import (
	"errors"
	"fmt"
)

// Error is a recoverable acquisition failure. Message is meant for the user.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeNoCards            = "NO_CARDS"
	CodeCardIndexRange     = "CARD_INDEX_RANGE"
	CodeDeviceBusy         = "DEVICE_BUSY"
	CodeDeviceNotFound     = "DEVICE_NOT_FOUND"
	CodeUnsupportedChip    = "UNSUPPORTED_CHIP"
	CodeDriverLoad         = "DRIVER_LOAD"
	CodeChipConfig         = "CHIP_CONFIG"
	CodeThreadStart        = "THREAD_START"
	CodeCardInUse          = "CARD_IN_USE"
	CodeSlaveMode          = "SLAVE_MODE"
	CodeDisabled           = "DISABLED"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeNotScanned         = "NOT_SCANNED"
)

// NewError creates a new acquisition error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// invariant panics when a state-machine invariant does not hold. Reaching
// one is a programming error, never a runtime condition.
func invariant(ok bool, format string, args ...any) {
	if !ok {
		panic("acq: invariant violated: " + fmt.Sprintf(format, args...))
	}
}
