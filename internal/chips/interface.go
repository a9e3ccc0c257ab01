// Package chips holds the table of known capture chips and the per-vendor
// chip interfaces used to drive them.
//
// A chip family implements two capabilities. Control programs a live chip
// through the hardware resource of an open session. Config answers static
// questions about card models (names, inputs, PLL) and works without
// hardware. The resolver maps a PCI vendor id to a family.
package chips

import "github.com/smazurov/vbinode/internal/hwdrv"

// Priority is the scheduling class requested for the acquisition thread.
type Priority int

// Acquisition thread priorities.
const (
	PriorityNormal Priority = iota
	PriorityAboveNormal
	PriorityTimeCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityAboveNormal:
		return "above_normal"
	case PriorityTimeCritical:
		return "time_critical"
	default:
		return "normal"
	}
}

// PriorityFromLevel maps the user-facing level 0..2 to a priority.
// Unknown levels fall back to normal.
func PriorityFromLevel(level int) Priority {
	switch level {
	case 1:
		return PriorityAboveNormal
	case 2:
		return PriorityTimeCritical
	default:
		return PriorityNormal
	}
}

// Location identifies the physical instance behind a source index.
type Location struct {
	VendorID    uint16
	DeviceID    uint16
	SubsystemID uint32
	Bus         uint32
	Slot        uint32
}

// Params is the parameter block carried by a resolved interface.
type Params struct {
	Location
	CardModel int
}

// Control drives a live chip. Calls are made from the single control path;
// implementations synchronize internally with their acquisition goroutine.
type Control interface {
	// Open takes over the chip behind res. wdmStop asks the chip to be left
	// stopped rather than reset when it is closed again.
	Open(res hwdrv.Resource, params Params, wdmStop bool) error
	Close()

	// Configure applies thread priority and PLL type. It may be called
	// again on an open chip and must not touch the input selection.
	Configure(prio Priority, pllType int) error

	StartThread() error
	StopThread()

	SetVideoSource(cardModel, input int) error
	IsInputATuner(cardModel, input int) bool
	IsVideoPresent() bool

	// ResetChip is handed to the I/O layer for ACPI-aware acquisition.
	ResetChip(res hwdrv.Resource) error
}

// Config answers static card-model questions for one chip family.
type Config interface {
	AutoDetectCardType(params Params) int
	PLLType(cardModel int) int
	// CardName returns the name of the card model with the given index.
	CardName(cardModel int) (string, bool)
	NumInputs(cardModel int) int
	InputName(cardModel, input int) (string, bool)
	SupportsACPI(params Params) bool
	FreeCardList()
}

// Family builds the capability pair of one chip family.
type Family interface {
	Name() string
	Config() Config
	NewControl() Control
}

// Interface is a resolved capability pair bound to a parameter block.
type Interface struct {
	Family  string
	Control Control
	Config  Config
	Params  Params
}
