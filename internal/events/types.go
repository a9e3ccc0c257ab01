package events

// Event type constants for kelindar/event.
const (
	TypeAcquisitionStateChanged uint32 = iota + 1
	TypeAcquisitionFailed
	TypeCardsScanned
	TypeConfigApplied
	TypePeerModeChanged
	TypeVBIStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// AcquisitionStateChangedEvent is published when the acquisition state or
// the bound card changes.
type AcquisitionStateChangedEvent struct {
	State     string `json:"state" example:"streaming" doc:"New state: disabled, bound, streaming, slave_observing"`
	Previous  string `json:"previous" example:"disabled" doc:"Previous state"`
	CardIndex int    `json:"card_index" example:"0" doc:"Configured source index"`
	SessionID string `json:"session_id,omitempty" doc:"Id of the open card session"`
	Reason    string `json:"reason" example:"start" doc:"Operation that caused the change"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AcquisitionStateChangedEvent.
func (e AcquisitionStateChangedEvent) Type() uint32 { return TypeAcquisitionStateChanged }

// AcquisitionFailedEvent is published when an operation leaves the
// acquisition in the failed state.
type AcquisitionFailedEvent struct {
	Operation string `json:"operation" example:"start" doc:"Failed operation"`
	Code      string `json:"code" example:"DEVICE_BUSY" doc:"Error code"`
	Message   string `json:"message" doc:"User-facing error message"`
	CardIndex int    `json:"card_index" example:"0" doc:"Configured source index"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AcquisitionFailedEvent.
func (e AcquisitionFailedEvent) Type() uint32 { return TypeAcquisitionFailed }

// CardsScannedEvent is published after a PCI bus scan.
type CardsScannedEvent struct {
	Status    string   `json:"status" example:"ok" doc:"Scan status: not_scanned, failed, ok"`
	Cards     []string `json:"cards" doc:"Chip name of each discovered card, by source index"`
	Timestamp string   `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CardsScannedEvent.
func (e CardsScannedEvent) Type() uint32 { return TypeCardsScanned }

// ConfigAppliedEvent is published after hardware settings were applied.
type ConfigAppliedEvent struct {
	Source    string `json:"source" example:"api" doc:"Origin of the settings: api, file, startup"`
	Driver    string `json:"driver" example:"pci" doc:"Configured driver kind"`
	CardIndex int    `json:"card_index" example:"0" doc:"Configured source index"`
	CardModel int    `json:"card_model" example:"5" doc:"Configured card model"`
	Error     string `json:"error,omitempty" doc:"Error when applying failed"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigAppliedEvent.
func (e ConfigAppliedEvent) Type() uint32 { return TypeConfigApplied }

// PeerModeChangedEvent is published when a cooperating TV application
// attaches or detaches.
type PeerModeChangedEvent struct {
	Slave     bool   `json:"slave" doc:"Whether a peer now owns the hardware"`
	Peer      string `json:"peer,omitempty" example:"tvapp@livingroom" doc:"Peer identity"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PeerModeChangedEvent.
func (e PeerModeChangedEvent) Type() uint32 { return TypePeerModeChanged }

// VBIStatsEvent is published periodically with capture throughput.
type VBIStatsEvent struct {
	Fields    uint64 `json:"fields" example:"150000" doc:"Fields captured since startup"`
	Lines     uint64 `json:"lines" example:"2400000" doc:"VBI lines captured since startup"`
	FieldRate string `json:"field_rate" example:"59.94" doc:"Fields per second over the last interval"`
	LastField string `json:"last_field,omitempty" example:"2026-01-27T10:30:00Z" doc:"Time of the most recent field"`
	Failed    bool   `json:"failed" doc:"Whether the acquisition is marked failed"`
}

// Type returns the event type identifier for VBIStatsEvent.
func (e VBIStatsEvent) Type() uint32 { return TypeVBIStats }
