// Package acq implements card discovery and the acquisition state machine:
// it scans the bus for known capture chips, binds one card at a time to a
// session, and starts, stops and live-reconfigures acquisition.
//
// Nothing in this package is safe for concurrent use. Callers serialize
// every call onto one control path.
package acq

import (
	"fmt"

	"github.com/smazurov/vbinode/internal/chips"
)

// MaxCards bounds the number of cards a scan records.
const MaxCards = 4

// InputUnset marks "no input source selected".
const InputUnset = -1

// DriverKind selects the acquisition backend.
type DriverKind string

// Driver kinds.
const (
	DriverNone DriverKind = "none"
	DriverPCI  DriverKind = "pci"
	DriverKS   DriverKind = "ks" // kernel-streaming backend
)

// ParseDriverKind validates a driver kind read from configuration.
// The empty string is treated as none.
func ParseDriverKind(s string) (DriverKind, error) {
	switch DriverKind(s) {
	case DriverNone, "":
		return DriverNone, nil
	case DriverPCI:
		return DriverPCI, nil
	case DriverKS:
		return DriverKS, nil
	}
	return DriverNone, fmt.Errorf("unknown driver kind %q", s)
}

// DiscoveredCard is one capture chip instance found by a bus scan.
type DiscoveredCard struct {
	ChipIndex   int `json:"chip_index"`
	ChipOrdinal int `json:"chip_ordinal"` // instance number among cards with the same chip

	VendorID    uint16 `json:"vendor_id"`
	DeviceID    uint16 `json:"device_id"`
	SubsystemID uint32 `json:"subsystem_id"`
	Bus         uint32 `json:"bus"`
	Slot        uint32 `json:"slot"`
}

// ChipType returns the packed chip type of the card.
func (c DiscoveredCard) ChipType() uint32 {
	return chips.ChipType(c.VendorID, c.DeviceID)
}

// ChipName returns the catalog name of the card's chip.
func (c DiscoveredCard) ChipName() string {
	d, _ := chips.At(c.ChipIndex)
	return d.Name
}

// Location returns the identifiers used to target this physical card.
func (c DiscoveredCard) Location() chips.Location {
	return chips.Location{
		VendorID:    c.VendorID,
		DeviceID:    c.DeviceID,
		SubsystemID: c.SubsystemID,
		Bus:         c.Bus,
		Slot:        c.Slot,
	}
}

// ScanStatus tells "not scanned yet" apart from "scanned, zero cards".
type ScanStatus int

// Scan states.
const (
	NotScanned ScanStatus = iota
	ScanFailed
	ScanOK
)

func (s ScanStatus) String() string {
	switch s {
	case ScanFailed:
		return "failed"
	case ScanOK:
		return "ok"
	default:
		return "not_scanned"
	}
}

// ScanResult is an immutable snapshot of a bus scan.
type ScanResult struct {
	Status ScanStatus
	Cards  []DiscoveredCard
}

// Card returns the card at a source index of a successful scan.
func (r ScanResult) Card(sourceIndex int) (DiscoveredCard, bool) {
	if r.Status != ScanOK || sourceIndex < 0 || sourceIndex >= len(r.Cards) {
		return DiscoveredCard{}, false
	}
	return r.Cards[sourceIndex], true
}

// Settings is the user-settable part of the hardware configuration.
type Settings struct {
	Driver      DriverKind `toml:"driver" json:"driver"`
	SourceIndex int        `toml:"source_index" json:"source_index"`
	Priority    int        `toml:"priority" json:"priority"` // 0 normal, 1 above normal, 2 time critical
	ChipType    uint32     `toml:"chip_type" json:"chip_type"`
	CardModel   int        `toml:"card_model" json:"card_model"`
	TunerType   int        `toml:"tuner_type" json:"tuner_type"`
	PLLType     int        `toml:"pll_type" json:"pll_type"`
	WDMStop     bool       `toml:"wdm_stop" json:"wdm_stop"`
}

// HardwareConfig is the controller's full view of the configuration,
// including the input and tuner state that is set separately.
type HardwareConfig struct {
	Settings
	InputSource int
	TunerFreq   int
	TunerNorm   int
}

// DisabledConfig is the neutral startup configuration.
func DisabledConfig() HardwareConfig {
	return HardwareConfig{
		Settings:    Settings{Driver: DriverNone},
		InputSource: InputUnset,
	}
}

// SessionState is the state of a card session.
type SessionState int

// Session states.
const (
	SessionClosed SessionState = iota
	SessionOpen
)

func (s SessionState) String() string {
	if s == SessionOpen {
		return "open"
	}
	return "closed"
}

// State is the acquisition controller state.
type State string

// Controller states.
const (
	StateDisabled       State = "disabled"
	StateBound          State = "bound"
	StateStreaming      State = "streaming"
	StateSlaveObserving State = "slave_observing"
)

// Mode is the coarse acquisition mode derived from the state.
type Mode string

// Acquisition modes.
const (
	ModeDisabled       Mode = "disabled"
	ModeSlaveObserving Mode = "slave_observing"
	ModeActive         Mode = "active"
)

// Mode returns the acquisition mode for the state.
func (s State) Mode() Mode {
	switch s {
	case StateSlaveObserving:
		return ModeSlaveObserving
	case StateBound, StateStreaming:
		return ModeActive
	default:
		return ModeDisabled
	}
}

// Status answers "is acquisition enabled and on which card".
type Status struct {
	Enabled   bool   `json:"enabled"`
	HasDriver bool   `json:"has_driver"`
	CardIndex int    `json:"card_index"`
	State     State  `json:"state"`
	Mode      Mode   `json:"mode"`
	SessionID string `json:"session_id,omitempty"`
}

// CardParams are the model-dependent parameters of a card.
type CardParams struct {
	CardModel int `json:"card_model"`
	TunerType int `json:"tuner_type"`
	PLLType   int `json:"pll_type"`
}

// StoredCard is a card remembered from an earlier run, indexed by source index.
type StoredCard struct {
	ChipType  uint32 `toml:"chip_type" json:"chip_type"`
	CardModel int    `toml:"card_model" json:"card_model"`
}

// CardEntry is one line of a card enumeration. ChipType is zero when the
// entry was synthesized from stored data because the scan failed.
type CardEntry struct {
	SourceIndex int    `json:"source_index"`
	ChipType    uint32 `json:"chip_type"`
	Name        string `json:"name"`
}

// CheckRequest is a stored configuration to validate against the hardware.
type CheckRequest struct {
	Driver      DriverKind
	SourceIndex int
	ChipType    uint32
	CardModel   int
	TunerType   int
	PLLType     int
	Input       int
}

// KSBackend is the alternate kernel-streaming backend. It competes with the
// PCI backend for the same card.
type KSBackend interface {
	Start(sourceIndex int) error
	Stop()
}
