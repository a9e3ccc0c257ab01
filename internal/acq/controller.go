package acq

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/hwdrv"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

// Options wires a controller to its collaborators.
type Options struct {
	Driver   hwdrv.Driver
	Resolver *chips.Resolver
	Buffer   *vbibuf.Buffer
	KS       KSBackend // optional
	Logger   *slog.Logger
}

// Stats counts controller transitions.
type Stats struct {
	Starts         int // successful starts
	FailedStarts   int
	Stops          int // Stop invocations, internal ones included
	LiveReconfigs  int // reconfigurations applied without stopping
	SourceSwitches int // configure calls that cycled stop/start
}

// Controller is the acquisition state machine. It owns the hardware
// configuration, the bus scanner and the single card session.
type Controller struct {
	io       *ioLayer
	scanner  *Scanner
	session  *Session
	resolver *chips.Resolver
	buf      *vbibuf.Buffer
	ks       KSBackend
	logger   *slog.Logger

	cfg       HardwareConfig
	slave     bool
	pciActive bool
	ksActive  bool
	stats     Stats
}

// NewController creates a controller in the disabled state.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Buffer == nil {
		opts.Buffer = vbibuf.New()
	}
	if opts.Resolver == nil {
		opts.Resolver = chips.NewResolver()
	}
	io := &ioLayer{drv: opts.Driver}
	scanner := newScanner(io, opts.Logger)
	return &Controller{
		io:       io,
		scanner:  scanner,
		session:  newSession(io, scanner, opts.Resolver, opts.Logger),
		resolver: opts.Resolver,
		buf:      opts.Buffer,
		ks:       opts.KS,
		logger:   opts.Logger,
		cfg:      DisabledConfig(),
	}
}

// Configure stores new settings and reconciles them with a running
// acquisition. A change of driver kind, source index or WDM stop cycles
// stop/start. Priority and PLL changes are applied to the live session, and
// a card model change reapplies the current input.
func (c *Controller) Configure(s Settings) error {
	if s.Driver == DriverPCI {
		if card, ok := c.scanner.Result().Card(s.SourceIndex); ok && card.ChipType() != s.ChipType {
			c.logger.Warn("Chip type of source changed, resetting card parameters",
				"source_index", s.SourceIndex,
				"stored", chips.FormatChipType(s.ChipType),
				"found", chips.FormatChipType(card.ChipType()))
			s.CardModel, s.TunerType, s.PLLType, s.WDMStop = 0, 0, 0, false
		}
	}

	prev := c.cfg.Settings
	sourceChange := s.Driver != prev.Driver || s.SourceIndex != prev.SourceIndex || s.WDMStop != prev.WDMStop
	cardModelChange := s.CardModel != prev.CardModel
	pllChange := s.PLLType != prev.PLLType
	prioChange := chips.PriorityFromLevel(s.Priority) != chips.PriorityFromLevel(prev.Priority)

	c.logger.Debug("Configure",
		"driver", s.Driver,
		"source_index", s.SourceIndex,
		"slave", c.slave,
		"pci", c.pciActive,
		"ks", c.ksActive,
		"source_change", sourceChange,
		"card_model_change", cardModelChange,
		"pll_change", pllChange,
		"priority_change", prioChange)

	c.cfg.Settings = s

	if c.slave || !(c.pciActive || c.ksActive) {
		if c.slave && sourceChange {
			return c.switchSource()
		}
		return nil
	}

	if sourceChange {
		return c.switchSource()
	}
	defer c.assertExclusive()

	if s.Driver != DriverPCI {
		return nil
	}
	// both deltas are applied even when the first one fails
	var err error
	if prioChange || pllChange {
		if cerr := c.session.Configure(s.CardModel, chips.PriorityFromLevel(s.Priority), s.PLLType, s.WDMStop); cerr != nil {
			c.logger.Error("Live reconfiguration failed", "session_id", c.session.ID(), "error", cerr)
			c.buf.SetFailed(true)
			err = cerr
		} else {
			c.stats.LiveReconfigs++
		}
	}
	if cardModelChange {
		c.session.Interface().Params.CardModel = s.CardModel
		if c.cfg.InputSource != InputUnset {
			if _, ierr := c.session.SetInputSource(c.cfg.InputSource, c.cfg.TunerNorm); ierr != nil {
				c.logger.Error("Failed to reapply input after card model change", "error", ierr)
				c.buf.SetFailed(true)
				err = errors.Join(err, ierr)
			} else {
				c.stats.LiveReconfigs++
			}
		}
	}
	return err
}

func (c *Controller) switchSource() error {
	c.stats.SourceSwitches++
	c.Stop()
	if err := c.Start(); err != nil {
		c.buf.SetFailed(true)
		return err
	}
	return nil
}

// Start begins acquisition with the current settings. It is a no-op when
// acquisition already runs or a peer owns the hardware. Every failure leaves
// the controller disabled with the session closed and sets the buffer's
// failure flag.
func (c *Controller) Start() error {
	if c.slave || c.pciActive || c.ksActive {
		c.logger.Debug("Start ignored, acquisition already active", "slave", c.slave)
		return nil
	}

	var err error
	switch c.cfg.Driver {
	case DriverPCI:
		err = c.startPCI()
	case DriverKS:
		err = c.startKS()
	default:
		err = NewError(CodeDisabled, "TV card acquisition is disabled.", nil)
	}
	c.assertExclusive()

	if err != nil {
		c.stats.FailedStarts++
		c.buf.SetFailed(true)
		return err
	}
	c.stats.Starts++
	c.buf.SetFailed(false)
	return nil
}

func (c *Controller) startPCI() (err error) {
	invariant(!c.ksActive, "PCI start while kernel-streaming backend is active")
	invariant(c.session.State() == SessionClosed, "PCI start with an open session")

	if err := c.io.load(); err != nil {
		le := loadError(err)
		c.logger.Error("Failed to load I/O layer", "error", err)
		return le
	}
	defer func() {
		if err != nil {
			c.session.Close()
			c.io.unload()
		}
	}()

	result, _ := c.scanner.Scan(false)
	idx := c.cfg.SourceIndex
	if _, ok := result.Card(idx); !ok {
		if len(result.Cards) == 0 {
			err = NewError(CodeNoCards, "Cannot start acquisition because no supported TV capture PCI cards have been found.", nil)
		} else {
			err = NewError(CodeCardIndexRange, fmt.Sprintf(
				"Cannot start acquisition because TV card #%d was not found on the PCI bus (found %d supported TV capture cards)",
				idx, len(result.Cards)), nil)
		}
		c.logger.Error("Cannot start acquisition", "source_index", idx, "cards", len(result.Cards))
		return err
	}

	if err = c.session.Open(idx); err != nil {
		return err
	}
	s := c.cfg.Settings
	if err = c.session.Configure(s.CardModel, chips.PriorityFromLevel(s.Priority), s.PLLType, s.WDMStop); err != nil {
		return err
	}
	if c.cfg.InputSource != InputUnset {
		if _, ierr := c.session.SetInputSource(c.cfg.InputSource, c.cfg.TunerNorm); ierr != nil {
			c.logger.Warn("Failed to reapply input source", "input", c.cfg.InputSource, "error", ierr)
		}
	}
	if err = c.session.StartThread(); err != nil {
		return err
	}

	c.pciActive = true
	c.logger.Info("Acquisition started", "session_id", c.session.ID(), "source_index", idx)
	return nil
}

func (c *Controller) startKS() error {
	invariant(!c.pciActive && !c.io.loaded, "kernel-streaming start while the PCI backend is loaded")

	if c.ks == nil {
		return NewError(CodeBackendUnavailable, "The kernel streaming backend is not available.", nil)
	}
	if err := c.ks.Start(c.cfg.SourceIndex); err != nil {
		c.logger.Error("Kernel streaming backend failed to start", "source_index", c.cfg.SourceIndex, "error", err)
		return NewError(CodeDriverLoad, "The kernel streaming backend failed to start.", err)
	}
	c.ksActive = true
	c.logger.Info("Acquisition started", "backend", DriverKS, "source_index", c.cfg.SourceIndex)
	return nil
}

// Stop ends acquisition: the acquisition goroutine is joined before the
// card is released. The input selection is always reset.
func (c *Controller) Stop() {
	c.stats.Stops++
	if c.pciActive {
		c.session.StopThread()
		c.session.Close()
		c.io.unload()
		c.pciActive = false
		c.logger.Info("Acquisition stopped", "source_index", c.cfg.SourceIndex)
	}
	if c.ksActive {
		c.ks.Stop()
		c.ksActive = false
		c.logger.Info("Acquisition stopped", "backend", DriverKS)
	}
	c.cfg.InputSource = InputUnset
}

// Restart stops and starts acquisition, keeping the tuner and input state.
// It is used when a peer attaches or detaches.
func (c *Controller) Restart() error {
	freq, norm, input := c.cfg.TunerFreq, c.cfg.TunerNorm, c.cfg.InputSource

	c.Stop()

	c.cfg.TunerFreq, c.cfg.TunerNorm, c.cfg.InputSource = freq, norm, input

	err := c.Start()
	c.buf.SetFailed(err != nil)
	return err
}

// SetSlaveMode marks whether a cooperating peer owns the hardware. It takes
// effect on the next Restart.
func (c *Controller) SetSlaveMode(slave bool) {
	c.slave = slave
}

// SetInputSource records the input for later reapplication and programs it
// when a PCI session is open. It reports whether the input is the tuner.
func (c *Controller) SetInputSource(index, norm int) (bool, error) {
	if index < 0 && index != InputUnset {
		return false, NewError(CodeChipConfig, fmt.Sprintf("Invalid video input %d.", index), nil)
	}
	c.cfg.InputSource = index
	c.cfg.TunerNorm = norm
	if !c.pciActive {
		return false, nil
	}
	return c.session.SetInputSource(index, norm)
}

// SetTunerFrequency records the tuner state preserved across restarts.
func (c *Controller) SetTunerFrequency(freq, norm int) {
	c.cfg.TunerFreq = freq
	c.cfg.TunerNorm = norm
}

// IsVideoPresent reports whether the bound card sees a video signal.
func (c *Controller) IsVideoPresent() bool {
	return c.pciActive && c.session.IsVideoPresent()
}

// State returns the enabled state and the configured card index.
func (c *Controller) State() Status {
	st := Status{
		Enabled:   c.slave || c.pciActive || c.ksActive,
		HasDriver: c.pciActive || c.ksActive,
		CardIndex: c.cfg.SourceIndex,
		State:     c.state(),
	}
	st.Mode = st.State.Mode()
	if c.pciActive {
		st.SessionID = c.session.ID()
	}
	return st
}

func (c *Controller) state() State {
	switch {
	case c.slave:
		return StateSlaveObserving
	case c.ksActive:
		return StateStreaming
	case c.pciActive && c.session.Running():
		return StateStreaming
	case c.pciActive:
		return StateBound
	default:
		return StateDisabled
	}
}

// Config returns the current hardware configuration.
func (c *Controller) Config() HardwareConfig {
	return c.cfg
}

// Buffer returns the shared acquisition buffer handle.
func (c *Controller) Buffer() *vbibuf.Buffer {
	return c.buf
}

// Stats returns the transition counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// DefaultDriverKind is the backend suggested on first start.
func (c *Controller) DefaultDriverKind() DriverKind {
	return DriverPCI
}

// Scan runs the bus scan if it has not succeeded yet. No scan is attempted
// while a peer owns the hardware.
func (c *Controller) Scan(reportErrors bool) (ScanResult, error) {
	if c.slave && c.scanner.Result().Status != ScanOK {
		return c.scanner.Result(), NewError(CodeSlaveMode,
			"Cannot scan PCI bus for TV cards while connected to a TV application.", nil)
	}
	return c.scanner.Scan(reportErrors)
}

// ScanResult returns the cached scan result without scanning.
func (c *Controller) ScanResult() ScanResult {
	return c.scanner.Result()
}

// Rescan drops the cached card list and scans again. Refused while
// acquisition runs because source indexes would change under the session.
func (c *Controller) Rescan(reportErrors bool) (ScanResult, error) {
	if c.pciActive || c.ksActive {
		return c.scanner.Result(), NewError(CodeCardInUse, "Stop acquisition before rescanning the PCI bus.", nil)
	}
	c.scanner.Invalidate()
	return c.Scan(reportErrors)
}

// Close stops acquisition if it still runs and frees cached card lists.
func (c *Controller) Close() {
	if c.pciActive || c.ksActive {
		c.Stop()
	}
	c.resolver.FreeCardLists()
}

func (c *Controller) assertExclusive() {
	invariant(!(c.pciActive && c.ksActive), "PCI and kernel-streaming backends active at the same time")
	invariant(c.pciActive == (c.session.State() == SessionOpen), "PCI active=%v with session %s", c.pciActive, c.session.State())
}
