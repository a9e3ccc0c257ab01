package acq

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/hwdrv"
)

// Session owns the one card bound for acquisition: its chip interface and
// its hardware resource. Close is the single teardown path.
type Session struct {
	io       *ioLayer
	scanner  *Scanner
	resolver *chips.Resolver
	logger   *slog.Logger

	state       SessionState
	sourceIndex int
	iface       *chips.Interface
	res         hwdrv.Resource
	ctlOpen     bool
	running     bool
	id          string
}

func newSession(io *ioLayer, scanner *Scanner, resolver *chips.Resolver, logger *slog.Logger) *Session {
	return &Session{io: io, scanner: scanner, resolver: resolver, logger: logger}
}

// Open binds the card at sourceIndex of the completed scan and acquires its
// hardware resource. The I/O layer must be loaded.
func (s *Session) Open(sourceIndex int) error {
	invariant(s.state == SessionClosed, "open on an open session (source %d)", s.sourceIndex)
	invariant(s.io.loaded, "session open without a loaded I/O layer")

	result := s.scanner.Result()
	if result.Status != ScanOK {
		return NewError(CodeNotScanned, "The PCI bus has not been scanned.", nil)
	}
	card, ok := result.Card(sourceIndex)
	if !ok {
		return NewError(CodeCardIndexRange,
			fmt.Sprintf("TV card #%d was not found on the PCI bus (found %d supported TV capture cards)", sourceIndex, len(result.Cards)), nil)
	}

	loc := card.Location()
	iface, err := s.resolver.Resolve(card.VendorID, &loc)
	if err != nil {
		return NewError(CodeUnsupportedChip, fmt.Sprintf("unknown chip type %s", card.ChipName()), err)
	}

	res, err := s.io.drv.Acquire(hwdrv.AcquireRequest{
		VendorID:  card.VendorID,
		DeviceID:  card.DeviceID,
		Ordinal:   card.ChipOrdinal,
		ACPIAware: iface.Config.SupportsACPI(iface.Params),
		Reset:     iface.Control.ResetChip,
	})
	switch {
	case err == nil:
	case errors.Is(err, hwdrv.ErrDeviceBusy):
		msg := fmt.Sprintf("Capture card #%d (with %s chip) cannot be locked!", sourceIndex, card.ChipName())
		s.logger.Error(msg, "source_index", sourceIndex)
		return NewError(CodeDeviceBusy, msg, err)
	default:
		s.logger.Debug("Card open failed", "source_index", sourceIndex, "error", err)
		return NewError(CodeDeviceNotFound, fmt.Sprintf("Capture card #%d could not be opened", sourceIndex), err)
	}

	s.state = SessionOpen
	s.sourceIndex = sourceIndex
	s.iface = iface
	s.res = res
	s.id = uuid.NewString()
	s.logger.Info("Card session opened",
		"session_id", s.id,
		"source_index", sourceIndex,
		"chip", card.ChipName(),
		"address", res.Address().String())
	return nil
}

// Configure applies chip setup. The first call after Open opens the chip
// control; a failure there closes the session. Later calls only re-apply
// priority and PLL and leave the input selection alone; their failure keeps
// the session open.
func (s *Session) Configure(cardModel int, prio chips.Priority, pllType int, wdmStop bool) error {
	invariant(s.state == SessionOpen, "configure on a closed session")

	s.iface.Params.CardModel = cardModel
	if !s.ctlOpen {
		if err := s.iface.Control.Open(s.res, s.iface.Params, wdmStop); err != nil {
			s.Close()
			return NewError(CodeChipConfig, "Failed to initialize the capture chip.", err)
		}
		s.ctlOpen = true
		if err := s.iface.Control.Configure(prio, pllType); err != nil {
			s.Close()
			return NewError(CodeChipConfig, "Failed to configure the capture chip.", err)
		}
		return nil
	}

	if err := s.iface.Control.Configure(prio, pllType); err != nil {
		return NewError(CodeChipConfig, "Failed to reconfigure the capture chip.", err)
	}
	s.logger.Debug("Live chip reconfiguration", "session_id", s.id, "priority", prio.String(), "pll_type", pllType)
	return nil
}

// SetInputSource muxes the input and reports whether it is the tuner.
func (s *Session) SetInputSource(index, norm int) (bool, error) {
	invariant(s.state == SessionOpen, "input selection on a closed session")

	model := s.iface.Params.CardModel
	if err := s.iface.Control.SetVideoSource(model, index); err != nil {
		return false, NewError(CodeChipConfig, fmt.Sprintf("Failed to select input %d.", index), err)
	}
	isTuner := s.iface.Control.IsInputATuner(model, index)
	s.logger.Debug("Input source selected", "session_id", s.id, "input", index, "norm", norm, "tuner", isTuner)
	return isTuner, nil
}

// StartThread starts the acquisition goroutine of the configured chip.
func (s *Session) StartThread() error {
	invariant(s.state == SessionOpen && s.ctlOpen, "thread start on an unconfigured session")
	if err := s.iface.Control.StartThread(); err != nil {
		return NewError(CodeThreadStart, "Failed to start the acquisition thread.", err)
	}
	s.running = true
	return nil
}

// StopThread stops and joins the acquisition goroutine if it runs.
func (s *Session) StopThread() {
	if !s.running {
		return
	}
	s.iface.Control.StopThread()
	s.running = false
}

// Close tears the session down: acquisition goroutine, chip control, then
// the hardware resource. Safe to call on a closed session.
func (s *Session) Close() {
	if s.state == SessionClosed {
		return
	}
	s.StopThread()
	if s.ctlOpen {
		s.iface.Control.Close()
		s.ctlOpen = false
	}
	if err := s.res.Release(); err != nil {
		s.logger.Warn("Failed to release card", "session_id", s.id, "error", err)
	}
	s.logger.Info("Card session closed", "session_id", s.id, "source_index", s.sourceIndex)

	s.state = SessionClosed
	s.iface = nil
	s.res = nil
	s.id = ""
}

// IsVideoPresent reports whether the bound chip sees a video signal.
func (s *Session) IsVideoPresent() bool {
	return s.state == SessionOpen && s.ctlOpen && s.iface.Control.IsVideoPresent()
}

// State returns the session lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// Running reports whether the acquisition goroutine runs.
func (s *Session) Running() bool {
	return s.running
}

// SourceIndex returns the bound source index. Only meaningful while open.
func (s *Session) SourceIndex() int {
	return s.sourceIndex
}

// Interface returns the bound chip interface, nil when closed.
func (s *Session) Interface() *chips.Interface {
	return s.iface
}

// ID returns the id of the current open session, "" when closed.
func (s *Session) ID() string {
	return s.id
}
