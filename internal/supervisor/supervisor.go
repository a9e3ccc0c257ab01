// Package supervisor is the single control path to the acquisition
// controller. HTTP handlers, the hardware file watcher, peer messages and
// the CLI all go through it; it serializes their calls and reports every
// transition on the event bus, in metrics and in the hardware store.
package supervisor

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/events"
	"github.com/smazurov/vbinode/internal/metrics"
	"github.com/smazurov/vbinode/internal/store"
)

// Config sources reported in ConfigAppliedEvent.
const (
	SourceStartup = "startup"
	SourceAPI     = "api"
	SourceFile    = "file"
)

// Options wires a supervisor.
type Options struct {
	Controller *acq.Controller
	Store      store.Store
	Bus        *events.Bus
	Logger     *slog.Logger
}

// Status is the controller status plus the shared failure flag.
type Status struct {
	acq.Status
	Failed       bool   `json:"failed"`
	VideoPresent bool   `json:"video_present"`
	Peer         string `json:"peer,omitempty"`
}

// Supervisor serializes access to one acquisition controller.
type Supervisor struct {
	mu     sync.Mutex
	ctl    *acq.Controller
	store  store.Store
	bus    *events.Bus
	logger *slog.Logger

	peer      string
	lastState acq.State
	lastStats acq.Stats
}

// New creates a supervisor. The controller must not be used directly
// afterwards.
func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Bus == nil {
		opts.Bus = events.New()
	}
	s := &Supervisor{
		ctl:       opts.Controller,
		store:     opts.Store,
		bus:       opts.Bus,
		logger:    opts.Logger,
		lastState: opts.Controller.State().State,
		lastStats: opts.Controller.Stats(),
	}
	metrics.SetAcquisitionState(string(s.lastState))
	return s
}

// Init applies the stored configuration and starts acquisition when a
// driver is configured.
func (s *Supervisor) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hw := s.stored()
	s.ctl.SetTunerFrequency(hw.Input.TunerFreq, hw.Input.TunerNorm)
	_, _ = s.ctl.SetInputSource(hw.Input.Source, hw.Input.TunerNorm)

	err := s.ctl.Configure(hw.Acquisition)
	if err == nil && hw.Acquisition.Driver != acq.DriverNone {
		err = s.ctl.Start()
	}
	s.published(SourceStartup, hw.Acquisition, err)
	s.after("init", err)
	if hw.Acquisition.Driver == acq.DriverPCI {
		s.recordScan()
	}
	return err
}

// Configure applies settings and, for API changes, persists them. A change
// of chip type against the discovered card resets the card parameters.
func (s *Supervisor) Configure(settings acq.Settings, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.Driver == acq.DriverPCI && settings.ChipType == 0 {
		if r, _ := s.ctl.Scan(false); r.Status == acq.ScanOK {
			if card, ok := r.Card(settings.SourceIndex); ok {
				settings.ChipType = card.ChipType()
			}
		}
	}

	err := s.ctl.Configure(settings)
	if err == nil && settings.Driver != acq.DriverNone && !s.ctl.State().Enabled {
		err = s.ctl.Start()
	}
	if settings.Driver == acq.DriverNone && acq.CodeOf(err) == acq.CodeDisabled {
		// switching the driver off is not a failure
		err = nil
		s.ctl.Buffer().SetFailed(false)
	}
	applied := s.ctl.Config().Settings
	if source == SourceAPI && s.store != nil {
		if perr := s.store.SetAcquisition(applied); perr != nil {
			s.logger.Error("Failed to persist hardware settings", "path", s.store.Path(), "error", perr)
			err = errors.Join(err, perr)
		}
	}
	s.published(source, applied, err)
	s.after("configure", err)
	if applied.Driver == acq.DriverPCI {
		s.recordScan()
	}
	return err
}

// ApplyFile adopts a hardware file changed on disk.
func (s *Supervisor) ApplyFile(hw store.Hardware) {
	if s.store != nil {
		s.store.Replace(hw)
	}
	if err := s.Configure(hw.Acquisition, SourceFile); err != nil {
		s.logger.Warn("Failed to apply hardware file", "error", err)
	}

	s.mu.Lock()
	cfg := s.ctl.Config()
	if cfg.InputSource != hw.Input.Source && hw.Input.Source != acq.InputUnset {
		_, err := s.ctl.SetInputSource(hw.Input.Source, hw.Input.TunerNorm)
		s.after("set_input", err)
	}
	s.ctl.SetTunerFrequency(hw.Input.TunerFreq, hw.Input.TunerNorm)
	s.mu.Unlock()
}

// Start begins acquisition with the current settings.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ctl.Start()
	s.after("start", err)
	return err
}

// Stop ends acquisition.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.Stop()
	s.after("stop", nil)
}

// Restart stops and starts acquisition keeping the input and tuner state.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ctl.Restart()
	s.after("restart", err)
	return err
}

// SetPeer switches slave mode when a cooperating application attaches or
// detaches, and restarts acquisition if it was enabled.
func (s *Supervisor) SetPeer(peer string, attached bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !attached && peer != s.peer && s.peer != "" {
		s.logger.Warn("Detach from a peer that does not own the hardware", "peer", peer, "owner", s.peer)
		return nil
	}
	s.ctl.SetSlaveMode(attached)
	if attached {
		s.peer = peer
	} else {
		s.peer = ""
	}

	var err error
	if s.ctl.Config().Driver != acq.DriverNone {
		err = s.ctl.Restart()
	}
	s.bus.Publish(events.PeerModeChangedEvent{Slave: attached, Peer: peer, Timestamp: now()})
	s.after("peer", err)
	return err
}

// SetInput selects the video input, persists it and reports whether it is
// the tuner.
func (s *Supervisor) SetInput(index, norm int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	isTuner, err := s.ctl.SetInputSource(index, norm)
	if err == nil && s.store != nil {
		cfg := s.ctl.Config()
		in := store.Input{Source: index, TunerFreq: cfg.TunerFreq, TunerNorm: norm}
		if perr := s.store.SetInput(in); perr != nil {
			s.logger.Error("Failed to persist input selection", "error", perr)
		}
	}
	s.after("set_input", err)
	return isTuner, err
}

// SetTuner records the tuner frequency and norm.
func (s *Supervisor) SetTuner(freq, norm int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.SetTunerFrequency(freq, norm)
}

// Status returns the current acquisition status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Status:       s.ctl.State(),
		Failed:       s.ctl.Buffer().HasFailed(),
		VideoPresent: s.ctl.IsVideoPresent(),
		Peer:         s.peer,
	}
}

// Config returns the current hardware configuration.
func (s *Supervisor) Config() acq.HardwareConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.Config()
}

// Close stops acquisition and frees card lists.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.Close()
	s.after("close", nil)
}

func (s *Supervisor) stored() store.Hardware {
	if s.store == nil {
		return store.Default()
	}
	return s.store.Get()
}

func (s *Supervisor) published(source string, settings acq.Settings, err error) {
	ev := events.ConfigAppliedEvent{
		Source:    source,
		Driver:    string(settings.Driver),
		CardIndex: settings.SourceIndex,
		CardModel: settings.CardModel,
		Timestamp: now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(ev)
}

// after reports the effects of one controller call (must hold lock).
func (s *Supervisor) after(op string, err error) {
	st := s.ctl.State()
	stats := s.ctl.Stats()

	for range stats.Starts - s.lastStats.Starts {
		metrics.RecordStart(true)
	}
	for range stats.FailedStarts - s.lastStats.FailedStarts {
		metrics.RecordStart(false)
	}
	metrics.AddLiveReconfigurations(stats.LiveReconfigs - s.lastStats.LiveReconfigs)
	metrics.SetAcquisitionFailed(s.ctl.Buffer().HasFailed())
	s.lastStats = stats

	if st.State != s.lastState {
		s.logger.Info("Acquisition state changed", "operation", op, "previous", s.lastState, "state", st.State, "source_index", st.CardIndex)
		metrics.SetAcquisitionState(string(st.State))
		s.bus.Publish(events.AcquisitionStateChangedEvent{
			State:     string(st.State),
			Previous:  string(s.lastState),
			CardIndex: st.CardIndex,
			SessionID: st.SessionID,
			Reason:    op,
			Timestamp: now(),
		})
		s.lastState = st.State
	}

	if err != nil && acq.CodeOf(err) != acq.CodeDisabled {
		var ae *acq.Error
		msg := err.Error()
		if errors.As(err, &ae) {
			msg = ae.Message
		}
		s.bus.Publish(events.AcquisitionFailedEvent{
			Operation: op,
			Code:      acq.CodeOf(err),
			Message:   msg,
			CardIndex: st.CardIndex,
			Timestamp: now(),
		})
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
