package acq

import (
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/vbinode/internal/hwdrv"
)

func TestStartNoCards(t *testing.T) {
	e := newEnv(t)
	if err := e.c.Configure(pciSettings(0, 5)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	err := e.c.Start()
	expectCode(t, err, CodeNoCards)
	if !strings.Contains(err.Error(), "no supported TV capture PCI cards") {
		t.Errorf("Expected a zero cards reason, got %v", err)
	}
	if st := e.c.State(); st.State != StateDisabled || st.Enabled {
		t.Errorf("Expected disabled, got %+v", st)
	}
	if !e.buf.HasFailed() {
		t.Error("hasFailed should be set")
	}
	e.checkConsistent(t)
}

func TestStartBt878Model5(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.buf.SetFailed(true)
	if err := e.c.Configure(pciSettings(0, 5)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if err := e.c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	st := e.c.State()
	if !st.Enabled || !st.HasDriver || st.CardIndex != 0 {
		t.Errorf("Expected enabled on card 0, got %+v", st)
	}
	if st.State != StateStreaming || st.Mode != ModeActive || st.SessionID == "" {
		t.Errorf("Expected active streaming session, got %+v", st)
	}
	if e.buf.HasFailed() {
		t.Error("hasFailed should be cleared on start")
	}
	if got := e.calls(); got != "open:5 configure:normal:0 start" {
		t.Errorf("Unexpected start sequence %q", got)
	}
	if !e.drv.Locked(0) {
		t.Error("Card should be locked while streaming")
	}
	e.checkConsistent(t)
}

func TestStartIndexOutOfRange(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	_ = e.c.Configure(pciSettings(2, 5))

	err := e.c.Start()
	expectCode(t, err, CodeCardIndexRange)
	if !strings.Contains(err.Error(), "TV card #2") || !strings.Contains(err.Error(), "found 1") {
		t.Errorf("Unexpected reason %v", err)
	}
	if e.c.State().State != StateDisabled || !e.buf.HasFailed() {
		t.Error("Expected disabled with hasFailed")
	}
	e.checkConsistent(t)
}

func TestStartIsNoopWhenActive(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.resetLog()

	if err := e.c.Start(); err != nil {
		t.Fatalf("Second start should succeed trivially: %v", err)
	}
	if got := e.calls(); got != "" {
		t.Errorf("Second start touched the chip: %q", got)
	}
	if got := e.drv.Stats().Loads; got != 1 {
		t.Errorf("Expected a single load, got %d", got)
	}
}

func TestStartDisabled(t *testing.T) {
	e := newEnv(t, bt878(3, 5))

	expectCode(t, e.c.Start(), CodeDisabled)
	if e.drv.Stats().Loads != 0 {
		t.Error("Disabled start should not load the I/O layer")
	}
}

func TestStartLoadFailure(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.drv.SetLoadError(hwdrv.NewLoadError(hwdrv.LoadNotInstalled, nil))
	_ = e.c.Configure(pciSettings(0, 5))

	err := e.c.Start()
	expectCode(t, err, CodeDriverLoad)
	if !strings.Contains(err.Error(), "not available") {
		t.Errorf("Expected the backend message, got %v", err)
	}
	e.checkConsistent(t)
}

func TestStartThreadFailureUnwinds(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.ctl.startErr = errors.New("no irq")
	_ = e.c.Configure(pciSettings(0, 5))

	expectCode(t, e.c.Start(), CodeThreadStart)
	if got := e.calls(); got != "open:5 configure:normal:0 start close" {
		t.Errorf("Unexpected unwind sequence %q", got)
	}
	if e.drv.Locked(0) || e.drv.Loaded() {
		t.Error("Failed start leaked the card or the I/O layer")
	}
	e.checkConsistent(t)
}

func TestQueriesAfterFailedStart(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *env)
		code  string
	}{
		{"thread", func(e *env) { e.ctl.startErr = errors.New("no irq") }, CodeThreadStart},
		{"configure", func(e *env) { e.ctl.configureErr = errors.New("dma") }, CodeChipConfig},
		{"busy", func(e *env) { e.drv.SetBusy(0, true) }, CodeDeviceBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, bt878(3, 5))
			tt.setup(e)
			_ = e.c.Configure(pciSettings(0, 0))
			expectCode(t, e.c.Start(), tt.code)

			e.ctl.startErr, e.ctl.configureErr = nil, nil
			e.drv.SetBusy(0, false)

			p, err := e.c.QueryCardParams(0, CardParams{})
			if err != nil {
				t.Fatalf("QueryCardParams after failed start: %v", err)
			}
			if p.CardModel != 10 {
				t.Errorf("Expected autodetected model 10, got %d", p.CardModel)
			}
			entries, err := e.c.EnumerateCards(DriverPCI, nil, true)
			if err != nil || len(entries) != 1 {
				t.Fatalf("EnumerateCards after failed start: %v %v", entries, err)
			}
			e.checkConsistent(t)
		})
	}
}

func TestLivePLLChange(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.resetLog()

	s := pciSettings(0, 5)
	s.PLLType = 2
	if err := e.c.Configure(s); err != nil {
		t.Fatalf("Live configure failed: %v", err)
	}

	if got := e.calls(); got != "configure:normal:2" {
		t.Errorf("Expected only a chip reconfigure, got %q", got)
	}
	stats := e.c.Stats()
	if stats.Stops != 0 || stats.SourceSwitches != 0 || stats.LiveReconfigs != 1 {
		t.Errorf("Unexpected transition counters %+v", stats)
	}
	if st := e.c.State(); st.State != StateStreaming || st.CardIndex != 0 {
		t.Errorf("Expected uninterrupted streaming on card 0, got %+v", st)
	}
	if !e.ctl.running {
		t.Error("Acquisition thread was stopped")
	}
}

func TestLivePriorityChange(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.resetLog()

	s := pciSettings(0, 5)
	s.Priority = 2
	_ = e.c.Configure(s)
	if got := e.calls(); got != "configure:time_critical:0" {
		t.Errorf("Expected a priority reconfigure, got %q", got)
	}

	// Unknown levels map to normal, like level 0.
	e.resetLog()
	s.Priority = 0
	_ = e.c.Configure(s)
	e.resetLog()
	s.Priority = 7
	_ = e.c.Configure(s)
	if got := e.calls(); got != "" {
		t.Errorf("Level 7 should equal level 0, got %q", got)
	}
}

func TestLiveCardModelChangeReappliesInput(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	if _, err := e.c.SetInputSource(1, 0); err != nil {
		t.Fatalf("SetInputSource failed: %v", err)
	}
	e.resetLog()

	if err := e.c.Configure(pciSettings(0, 6)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if got := e.calls(); got != "input:6:1" {
		t.Errorf("Expected the input reapplied for model 6, got %q", got)
	}
	if e.c.Stats().Stops != 0 {
		t.Error("Card model change should not stop acquisition")
	}
}

func TestLiveReconfigureFailureMarksFailed(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.ctl.configureErr = errors.New("register write failed")

	s := pciSettings(0, 5)
	s.PLLType = 1
	expectCode(t, e.c.Configure(s), CodeChipConfig)

	if !e.buf.HasFailed() {
		t.Error("hasFailed should be set")
	}
	if got := e.c.Config().PLLType; got != 1 {
		t.Errorf("Settings should be stored even on failure, got PLL %d", got)
	}
	if e.c.State().State != StateStreaming {
		t.Error("Controller should stay where the session ended up")
	}
	e.checkConsistent(t)
}

func TestSourceChangeOutOfRange(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))

	err := e.c.Configure(pciSettings(3, 5))
	expectCode(t, err, CodeCardIndexRange)

	st := e.c.State()
	if st.State != StateDisabled || st.Enabled {
		t.Errorf("Expected disabled, got %+v", st)
	}
	if !e.buf.HasFailed() {
		t.Error("hasFailed should be set")
	}
	if e.c.Stats().Stops != 1 {
		t.Errorf("Expected one stop, got %d", e.c.Stats().Stops)
	}
	if e.drv.Locked(0) || e.drv.Loaded() {
		t.Error("Old card still held")
	}
	e.checkConsistent(t)
}

func TestSourceChangeSwitchesCard(t *testing.T) {
	e := newEnv(t, bt878(3, 5), bt878(4, 1))
	e.streaming(t, pciSettings(0, 5))
	e.resetLog()

	if err := e.c.Configure(pciSettings(1, 5)); err != nil {
		t.Fatalf("Source change failed: %v", err)
	}
	if got := e.calls(); got != "stop close open:5 configure:normal:0 start" {
		t.Errorf("Expected stop-then-start, got %q", got)
	}
	if e.drv.Locked(0) || !e.drv.Locked(1) {
		t.Error("Expected card 1 bound")
	}
	if st := e.c.State(); st.CardIndex != 1 || st.State != StateStreaming {
		t.Errorf("Unexpected state %+v", st)
	}
	e.checkConsistent(t)
}

func TestWDMStopChangeCyclesSession(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))

	s := pciSettings(0, 5)
	s.WDMStop = true
	if err := e.c.Configure(s); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if e.c.Stats().SourceSwitches != 1 {
		t.Error("wdm stop change should cycle the session")
	}
}

func TestChipTypeMismatchResetsParams(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	_, _ = e.c.Scan(true)

	s := Settings{Driver: DriverPCI, ChipType: bt848Type, CardModel: 5, TunerType: 3, PLLType: 1, WDMStop: true}
	_ = e.c.Configure(s)

	got := e.c.Config().Settings
	if got.CardModel != 0 || got.TunerType != 0 || got.PLLType != 0 || got.WDMStop {
		t.Errorf("Expected dependent fields reset, got %+v", got)
	}
	if got.ChipType != bt848Type {
		t.Errorf("Chip type should be stored as given, got 0x%x", got.ChipType)
	}
}

func TestConfigureWhileDisabledOnlyStores(t *testing.T) {
	e := newEnv(t, bt878(3, 5))

	s := pciSettings(0, 5)
	s.PLLType = 2
	if err := e.c.Configure(s); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if e.c.Config().Settings != s {
		t.Errorf("Settings not stored: %+v", e.c.Config().Settings)
	}
	if e.drv.Stats().Loads != 0 || e.calls() != "" {
		t.Error("Configure while disabled touched the hardware")
	}
}

func TestRestartReappliesInput(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	_, _ = e.c.SetInputSource(2, 1)
	e.c.SetTunerFrequency(48250, 1)
	e.resetLog()

	if err := e.c.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	want := "stop close open:5 configure:normal:0 input:5:2 start"
	if got := e.calls(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	cfg := e.c.Config()
	if cfg.InputSource != 2 || cfg.TunerFreq != 48250 || cfg.TunerNorm != 1 {
		t.Errorf("Input state not restored: %+v", cfg)
	}
	if e.buf.HasFailed() {
		t.Error("hasFailed should be cleared after a good restart")
	}
}

func TestRestartFailureSetsFailed(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.drv.SetLoadError(hwdrv.NewLoadError(hwdrv.LoadFailed, nil))

	expectCode(t, e.c.Restart(), CodeDriverLoad)
	if !e.buf.HasFailed() {
		t.Error("hasFailed should be set")
	}
	e.checkConsistent(t)
}

func TestLiveCardModelChangeWithoutInput(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.resetLog()
	before := e.c.Stats().LiveReconfigs

	if err := e.c.Configure(pciSettings(0, 6)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if got := e.calls(); got != "" {
		t.Errorf("Expected no chip writes without a selected input, got %q", got)
	}
	if got := e.c.Stats().LiveReconfigs; got != before {
		t.Errorf("Expected %d live reconfigurations, got %d", before, got)
	}
}

func TestLiveReconfigureFailureStillReappliesInput(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	if _, err := e.c.SetInputSource(1, 0); err != nil {
		t.Fatalf("SetInputSource failed: %v", err)
	}
	e.resetLog()
	before := e.c.Stats().LiveReconfigs
	e.ctl.configureErr = errors.New("pll did not lock")

	s := pciSettings(0, 6)
	s.PLLType = 2
	expectCode(t, e.c.Configure(s), CodeChipConfig)

	if got := e.calls(); got != "configure:normal:2 input:6:1" {
		t.Errorf("Expected both deltas applied, got %q", got)
	}
	if got := e.c.Stats().LiveReconfigs; got != before+1 {
		t.Errorf("Expected only the input reapply counted, got %d (was %d)", got, before)
	}
	if !e.buf.HasFailed() {
		t.Error("hasFailed should be set")
	}
}

func TestSetInputSourceRejectsNegative(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	_, _ = e.c.SetInputSource(2, 0)
	e.resetLog()

	_, err := e.c.SetInputSource(-2, 0)
	expectCode(t, err, CodeChipConfig)
	if got := e.c.Config().InputSource; got != 2 {
		t.Errorf("Rejected input replaced the selection, got %d", got)
	}
	if got := e.calls(); got != "" {
		t.Errorf("Rejected input reached the chip: %q", got)
	}
}

func TestStopResetsInput(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	_, _ = e.c.SetInputSource(3, 0)

	e.c.Stop()
	if got := e.c.Config().InputSource; got != InputUnset {
		t.Errorf("Expected unset input after stop, got %d", got)
	}

	e.streaming(t, pciSettings(0, 5))
	_, _ = e.c.SetInputSource(1, 0)
	e.c.Stop()
	e.c.Stop()
	if got := e.c.Config().InputSource; got != InputUnset {
		t.Errorf("Expected unset input after stop, got %d", got)
	}
	if e.drv.Loaded() || e.drv.Locked(0) {
		t.Error("Stop left hardware held")
	}
	e.checkConsistent(t)
}

func TestStopJoinsThreadBeforeRelease(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))
	e.resetLog()

	e.c.Stop()
	if got := e.calls(); got != "stop close" {
		t.Errorf("Expected thread stop before close, got %q", got)
	}
}

func TestSetInputSourceBeforeStart(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	_ = e.c.Configure(pciSettings(0, 5))

	isTuner, err := e.c.SetInputSource(0, 2)
	if err != nil || isTuner {
		t.Errorf("Expected a recorded, unapplied input: %v %v", isTuner, err)
	}
	if e.calls() != "" {
		t.Error("Input applied without an open session")
	}

	if err := e.c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := e.calls(); got != "open:5 configure:normal:0 input:5:0 start" {
		t.Errorf("Pending input not applied after configure: %q", got)
	}

	isTuner, err = e.c.SetInputSource(0, 2)
	if err != nil || !isTuner {
		t.Errorf("Expected tuner input, got %v %v", isTuner, err)
	}
}

func TestSlaveMode(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))

	e.c.SetSlaveMode(true)
	if err := e.c.Restart(); err != nil {
		t.Fatalf("Restart into slave mode failed: %v", err)
	}
	st := e.c.State()
	if st.State != StateSlaveObserving || st.Mode != ModeSlaveObserving || !st.Enabled || st.HasDriver {
		t.Errorf("Expected slave observing, got %+v", st)
	}
	if e.drv.Loaded() || e.drv.Locked(0) {
		t.Error("Slave mode should release the hardware")
	}

	loads := e.drv.Stats().Loads
	_ = e.c.Start()
	_, _ = e.c.EnumerateCards(DriverPCI, nil, false)
	if _, err := e.c.QueryCardParams(0, CardParams{}); CodeOf(err) != CodeSlaveMode {
		t.Errorf("Expected slave mode refusal, got %v", err)
	}
	if e.drv.Stats().Loads != loads {
		t.Error("Slave mode touched the I/O layer")
	}

	e.c.SetSlaveMode(false)
	if err := e.c.Restart(); err != nil {
		t.Fatalf("Restart out of slave mode failed: %v", err)
	}
	if e.c.State().State != StateStreaming {
		t.Error("Expected streaming after the peer detached")
	}
	e.checkConsistent(t)
}

func TestSlaveModeSourceChange(t *testing.T) {
	e := newEnv(t, bt878(3, 5), bt878(4, 1))
	e.c.SetSlaveMode(true)
	_ = e.c.Configure(pciSettings(0, 5))

	if err := e.c.Configure(pciSettings(1, 5)); err != nil {
		t.Fatalf("Configure in slave mode failed: %v", err)
	}
	if st := e.c.State(); st.CardIndex != 1 || st.State != StateSlaveObserving {
		t.Errorf("Expected slave mode mirroring card 1, got %+v", st)
	}
	if e.drv.Stats().Loads != 0 {
		t.Error("Slave mode loaded the I/O layer")
	}
}

func TestKSBackend(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	ks := e.withKS(t)

	_ = e.c.Configure(Settings{Driver: DriverKS, SourceIndex: 0})
	if err := e.c.Start(); err != nil {
		t.Fatalf("KS start failed: %v", err)
	}
	if st := e.c.State(); st.State != StateStreaming || !st.HasDriver {
		t.Errorf("Expected KS streaming, got %+v", st)
	}
	e.checkConsistent(t)

	// Switching to PCI preempts the KS backend.
	if err := e.c.Configure(pciSettings(0, 5)); err != nil {
		t.Fatalf("Switch to PCI failed: %v", err)
	}
	if ks.stops != 1 || ks.active {
		t.Errorf("KS backend not stopped: %+v", ks)
	}
	if !e.drv.Locked(0) {
		t.Error("PCI backend did not take the card")
	}
	e.checkConsistent(t)

	if err := e.c.Configure(Settings{Driver: DriverKS, SourceIndex: 0}); err != nil {
		t.Fatalf("Switch back to KS failed: %v", err)
	}
	if ks.starts != 2 || e.drv.Loaded() {
		t.Error("KS backend should own the card again")
	}
	e.checkConsistent(t)
}

func TestKSBackendUnavailable(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	_ = e.c.Configure(Settings{Driver: DriverKS})

	expectCode(t, e.c.Start(), CodeBackendUnavailable)
	if e.c.State().State != StateDisabled {
		t.Error("Expected disabled")
	}
}

func TestKSBackendStartFailure(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	ks := e.withKS(t)
	ks.startErr = errors.New("device in use")
	_ = e.c.Configure(Settings{Driver: DriverKS})

	expectCode(t, e.c.Start(), CodeDriverLoad)
	if e.c.State().State != StateDisabled || !e.buf.HasFailed() {
		t.Error("Expected disabled with hasFailed")
	}
}

func TestBackendsNeverBothActive(t *testing.T) {
	e := newEnv(t, bt878(3, 5), bt878(4, 1))
	e.withKS(t)

	ks := Settings{Driver: DriverKS}
	steps := []func(){
		func() { _ = e.c.Configure(pciSettings(0, 5)) },
		func() { _ = e.c.Start() },
		func() { _ = e.c.Configure(ks) },
		func() { _ = e.c.Start() },
		func() { _ = e.c.Restart() },
		func() { _ = e.c.Configure(pciSettings(1, 5)) },
		func() { _, _ = e.c.QueryCardParams(1, CardParams{}) },
		func() { e.c.SetSlaveMode(true) },
		func() { _ = e.c.Restart() },
		func() { _ = e.c.Configure(ks) },
		func() { e.c.SetSlaveMode(false) },
		func() { _ = e.c.Restart() },
		func() { _ = e.c.Configure(pciSettings(3, 5)) },
		func() { _ = e.c.Start() },
		func() { _ = e.c.Configure(pciSettings(0, 5)) },
		func() { _ = e.c.Start() },
		func() { _, _ = e.c.QueryCardParams(0, CardParams{}) },
		func() { _ = e.c.Configure(ks) },
		func() { e.c.Stop() },
		func() { _ = e.c.Start() },
		func() { e.c.Close() },
	}
	for i, step := range steps {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Step %d panicked: %v", i, r)
				}
			}()
			step()
		}()
		e.checkConsistent(t)
	}
}

func TestControllerInvariant(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.withKS(t)
	e.c.pciActive, e.c.ksActive = true, true

	expectInvariantPanic(t, e.c.assertExclusive)
}

func TestIsVideoPresent(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.ctl.video = true
	if e.c.IsVideoPresent() {
		t.Error("No video without acquisition")
	}

	e.streaming(t, pciSettings(0, 5))
	if !e.c.IsVideoPresent() {
		t.Error("Expected video present")
	}
}

func TestCloseStopsAndFreesCardLists(t *testing.T) {
	e := newEnv(t, bt878(3, 5))
	e.streaming(t, pciSettings(0, 5))

	e.c.Close()
	if e.drv.Loaded() || e.drv.Locked(0) {
		t.Error("Close left acquisition running")
	}
	if e.cfg.freed != 1 {
		t.Errorf("Expected card lists freed once, got %d", e.cfg.freed)
	}
}

func TestDefaultDriverKind(t *testing.T) {
	e := newEnv(t)
	if got := e.c.DefaultDriverKind(); got != DriverPCI {
		t.Errorf("Expected pci, got %s", got)
	}
}

func TestParseDriverKind(t *testing.T) {
	tests := []struct {
		in      string
		want    DriverKind
		wantErr bool
	}{
		{"", DriverNone, false},
		{"none", DriverNone, false},
		{"pci", DriverPCI, false},
		{"ks", DriverKS, false},
		{"wdm", DriverNone, true},
	}
	for _, tt := range tests {
		got, err := ParseDriverKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDriverKind(%q) = %s, %v", tt.in, got, err)
		}
	}
}
