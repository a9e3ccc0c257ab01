package hwdrv

import (
	"errors"
	"fmt"
)

// Driver is the low-level PCI/DMA I/O layer. It maps device BARs and hands out
// exclusive hardware resources for a single physical capture chip.
//
// Load and Unload bracket every use of Probe and Acquire. A Driver is not
// required to be safe for concurrent use.
type Driver interface {
	// Load initializes the I/O layer. Failures are returned as *LoadError.
	Load() error

	// Unload shuts the I/O layer down and releases everything it still holds.
	Unload()

	// Probe reports whether the ordinal-th device with the given ids is present.
	Probe(vendorID, deviceID uint16, ordinal int) (Probe, bool)

	// Acquire locks and maps the hardware of one physical device.
	// Returns ErrDeviceBusy when another process holds the device and
	// ErrDeviceNotFound when no such device exists.
	Acquire(req AcquireRequest) (Resource, error)
}

// Probe describes a device found on the bus.
type Probe struct {
	SubsystemID uint32
	Bus         uint32
	Slot        uint32
}

// ResetFunc resets a chip right after its resources were mapped. It is used
// for chips that come out of an ACPI sleep state in an undefined state.
type ResetFunc func(res Resource) error

// AcquireRequest selects one physical device for Acquire.
type AcquireRequest struct {
	VendorID  uint16
	DeviceID  uint16
	Ordinal   int
	ACPIAware bool
	Reset     ResetFunc
}

// Address is the bus location of an acquired device.
type Address struct {
	Bus  uint32
	Slot uint32
}

func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x", a.Bus, a.Slot)
}

// Resource is the exclusive handle on a device's register window.
type Resource interface {
	ReadRegister(offset uint32) (uint32, error)
	WriteRegister(offset, value uint32) error
	Address() Address
	// Release unmaps the registers and drops the device lock. Safe to call twice.
	Release() error
}

// Sentinel errors returned by Driver.Acquire.
var (
	ErrDeviceBusy     = errors.New("device is locked by another process")
	ErrDeviceNotFound = errors.New("device not found")
	ErrNotLoaded      = errors.New("I/O layer not loaded")
)

// LoadCode classifies why the I/O layer failed to load.
type LoadCode int

// Load failure codes.
const (
	LoadNotInstalled LoadCode = iota + 1
	LoadAccessDenied
	LoadVersionMismatch
	LoadFailed
)

func (c LoadCode) String() string {
	switch c {
	case LoadNotInstalled:
		return "NOT_INSTALLED"
	case LoadAccessDenied:
		return "ACCESS_DENIED"
	case LoadVersionMismatch:
		return "VERSION_MISMATCH"
	case LoadFailed:
		return "LOAD_FAILED"
	default:
		return "UNKNOWN"
	}
}

// LoadError is returned by Driver.Load. Message is meant for the user.
type LoadError struct {
	Code    LoadCode
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// NewLoadError creates a load error with the default message for its code.
func NewLoadError(code LoadCode, cause error) *LoadError {
	return &LoadError{
		Code:    code,
		Message: loadMessage(code),
		Cause:   cause,
	}
}

func loadMessage(code LoadCode) string {
	switch code {
	case LoadNotInstalled:
		return "The PCI bus driver is not available on this system."
	case LoadAccessDenied:
		return "Access to the PCI bus driver was denied. Run with sufficient privileges."
	case LoadVersionMismatch:
		return "The installed PCI bus driver has an incompatible version."
	default:
		return "Failed to load the PCI bus driver."
	}
}
