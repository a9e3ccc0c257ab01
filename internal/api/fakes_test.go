package api

import (
	"sync"

	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/supervisor"
)

// fakeHardware is a test implementation of Hardware.
type fakeHardware struct {
	mu sync.Mutex

	status    supervisor.Status
	config    acq.HardwareConfig
	entries   []acq.CardEntry
	scan      acq.ScanResult
	params    acq.CardParams
	names     map[int]string
	inputs    []string
	checkOK   bool
	isTuner   bool
	err       error // returned by the next mutating call
	enumErr   error
	calls     []string
	configure []acq.Settings
	sources   []string
}

func newFakeHardware() *fakeHardware {
	return &fakeHardware{
		status: supervisor.Status{Status: acq.Status{State: acq.StateDisabled, Mode: acq.ModeDisabled}},
		config: acq.DisabledConfig(),
		names:  map[int]string{},
	}
}

func (f *fakeHardware) record(call string) error {
	f.calls = append(f.calls, call)
	err := f.err
	f.err = nil
	return err
}

func (f *fakeHardware) Status() supervisor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeHardware) Config() acq.HardwareConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

func (f *fakeHardware) Configure(s acq.Settings, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configure = append(f.configure, s)
	f.sources = append(f.sources, source)
	if err := f.record("configure"); err != nil {
		return err
	}
	f.config.Settings = s
	return nil
}

func (f *fakeHardware) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("start"); err != nil {
		return err
	}
	f.status.State, f.status.Mode, f.status.Enabled = acq.StateStreaming, acq.ModeActive, true
	return nil
}

func (f *fakeHardware) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record("stop")
	f.status.State, f.status.Mode, f.status.Enabled = acq.StateDisabled, acq.ModeDisabled, false
}

func (f *fakeHardware) Restart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("restart")
}

func (f *fakeHardware) SetInput(index, norm int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("input"); err != nil {
		return false, err
	}
	f.config.InputSource, f.config.TunerNorm = index, norm
	return f.isTuner, nil
}

func (f *fakeHardware) SetTuner(freq, norm int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record("tuner")
	f.config.TunerFreq, f.config.TunerNorm = freq, norm
}

func (f *fakeHardware) EnumerateCards(kind acq.DriverKind, showDrvErr bool) ([]acq.CardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record("enumerate")
	return f.entries, f.enumErr
}

func (f *fakeHardware) Scanned() acq.ScanResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scan
}

func (f *fakeHardware) Rescan(bool) (acq.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scan, f.record("rescan")
}

func (f *fakeHardware) CardName(sourceIndex, cardModel int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[cardModel]
	return name, ok
}

func (f *fakeHardware) InputNames(int, int, acq.DriverKind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs
}

func (f *fakeHardware) QueryCardParams(sourceIndex int, p acq.CardParams) (acq.CardParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("detect"); err != nil {
		return acq.CardParams{}, err
	}
	return f.params, nil
}

func (f *fakeHardware) CheckStored() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkOK
}

func (f *fakeHardware) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
