package acq

import (
	"fmt"
	"strings"
	"testing"

	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/hwdrv"
	"github.com/smazurov/vbinode/internal/hwdrv/sim"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

var (
	bt878Type = chips.ChipType(chips.VendorBrooktree, 0x036e)
	bt848Type = chips.ChipType(chips.VendorBrooktree, 0x0350)
	saa7134   = chips.ChipType(chips.VendorPhilips, 0x7134)
)

func bt878(bus, slot uint32) sim.Card {
	return sim.Card{VendorID: chips.VendorBrooktree, DeviceID: 0x036e, SubsystemID: 0x13eb0070, Bus: bus, Slot: slot}
}

func philips(bus, slot uint32) sim.Card {
	return sim.Card{VendorID: chips.VendorPhilips, DeviceID: 0x7134, Bus: bus, Slot: slot}
}

// fakeControl records every call in order.
type fakeControl struct {
	log *[]string

	openErr      error
	configureErr error
	startErr     error
	inputErr     error
	video        bool

	res     hwdrv.Resource
	running bool
}

func (f *fakeControl) record(format string, args ...any) {
	*f.log = append(*f.log, fmt.Sprintf(format, args...))
}

func (f *fakeControl) Open(res hwdrv.Resource, params chips.Params, wdmStop bool) error {
	f.record("open:%d", params.CardModel)
	if f.openErr != nil {
		return f.openErr
	}
	f.res = res
	return nil
}

func (f *fakeControl) Close() {
	f.record("close")
	f.res = nil
}

func (f *fakeControl) Configure(prio chips.Priority, pllType int) error {
	f.record("configure:%s:%d", prio, pllType)
	return f.configureErr
}

func (f *fakeControl) StartThread() error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeControl) StopThread() {
	f.record("stop")
	f.running = false
}

func (f *fakeControl) SetVideoSource(cardModel, input int) error {
	f.record("input:%d:%d", cardModel, input)
	return f.inputErr
}

func (f *fakeControl) IsInputATuner(cardModel, input int) bool {
	return input == 0
}

func (f *fakeControl) IsVideoPresent() bool {
	return f.video
}

func (f *fakeControl) ResetChip(hwdrv.Resource) error {
	return nil
}

// fakeConfig knows models 0..20 with four inputs each.
type fakeConfig struct {
	freed int
}

func (f *fakeConfig) AutoDetectCardType(params chips.Params) int {
	if params.SubsystemID == 0x13eb0070 {
		return 10
	}
	return 0
}

func (f *fakeConfig) PLLType(cardModel int) int {
	return cardModel % 3
}

func (f *fakeConfig) CardName(cardModel int) (string, bool) {
	if cardModel < 0 || cardModel > 20 {
		return "", false
	}
	return fmt.Sprintf("Model %d", cardModel), true
}

func (f *fakeConfig) NumInputs(cardModel int) int {
	if _, ok := f.CardName(cardModel); !ok {
		return 0
	}
	return 4
}

func (f *fakeConfig) InputName(cardModel, input int) (string, bool) {
	return fmt.Sprintf("Input %d", input), true
}

func (f *fakeConfig) SupportsACPI(chips.Params) bool {
	return false
}

func (f *fakeConfig) FreeCardList() {
	f.freed++
}

type fakeFamily struct {
	cfg *fakeConfig
	ctl *fakeControl
}

func (f *fakeFamily) Name() string              { return "fake" }
func (f *fakeFamily) Config() chips.Config      { return f.cfg }
func (f *fakeFamily) NewControl() chips.Control { return f.ctl }

// fakeKS is a kernel-streaming backend that checks the PCI backend is idle.
type fakeKS struct {
	t        *testing.T
	drv      *sim.Driver
	startErr error
	starts   int
	stops    int
	active   bool
}

func (f *fakeKS) Start(sourceIndex int) error {
	if f.drv.Loaded() {
		f.t.Error("kernel streaming started while the PCI I/O layer is loaded")
	}
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeKS) Stop() {
	f.stops++
	f.active = false
}

type env struct {
	drv *sim.Driver
	cfg *fakeConfig
	ctl *fakeControl
	log []string
	buf *vbibuf.Buffer
	c   *Controller
}

func newEnv(t *testing.T, cards ...sim.Card) *env {
	t.Helper()
	e := &env{drv: sim.New(nil, cards...), cfg: &fakeConfig{}, buf: vbibuf.New()}
	e.ctl = &fakeControl{log: &e.log}

	resolver := chips.NewResolver()
	resolver.Register(chips.VendorBrooktree, &fakeFamily{cfg: e.cfg, ctl: e.ctl})

	e.c = NewController(Options{Driver: e.drv, Resolver: resolver, Buffer: e.buf})
	return e
}

func (e *env) withKS(t *testing.T) *fakeKS {
	ks := &fakeKS{t: t, drv: e.drv}
	e.c.ks = ks
	return ks
}

func (e *env) calls() string {
	return strings.Join(e.log, " ")
}

func (e *env) resetLog() {
	e.log = e.log[:0]
}

func pciSettings(sourceIndex, cardModel int) Settings {
	return Settings{Driver: DriverPCI, SourceIndex: sourceIndex, ChipType: bt878Type, CardModel: cardModel}
}

// streaming brings the controller to the streaming state on sourceIndex.
func (e *env) streaming(t *testing.T, s Settings) {
	t.Helper()
	if err := e.c.Configure(s); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := e.c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if st := e.c.State(); st.State != StateStreaming {
		t.Fatalf("Expected streaming, got %s", st.State)
	}
}

// checkConsistent asserts the observable state matches the hardware.
func (e *env) checkConsistent(t *testing.T) {
	t.Helper()
	if e.c.pciActive && e.c.ksActive {
		t.Fatal("Both backends active")
	}
	if e.c.pciActive != e.drv.Loaded() {
		t.Fatalf("PCI active=%v but I/O layer loaded=%v", e.c.pciActive, e.drv.Loaded())
	}
	if e.c.pciActive != (e.c.session.State() == SessionOpen) {
		t.Fatalf("PCI active=%v but session %s", e.c.pciActive, e.c.session.State())
	}
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("Expected code %s, got %q (%v)", code, got, err)
	}
}

func expectInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		msg, ok := r.(string)
		if !ok || !strings.HasPrefix(msg, "acq: invariant violated:") {
			t.Fatalf("Expected invariant panic, got %v", r)
		}
	}()
	fn()
}
