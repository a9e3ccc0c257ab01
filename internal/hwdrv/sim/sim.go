// Package sim provides an in-memory I/O layer that behaves like a PCI bus with
// a configurable set of capture cards. It backs the test suites and the
// `--driver sim` mode used for development without capture hardware.
package sim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/vbinode/internal/hwdrv"
)

// Card describes one simulated device on the bus.
type Card struct {
	VendorID    uint16            `toml:"vendor_id"`
	DeviceID    uint16            `toml:"device_id"`
	SubsystemID uint32            `toml:"subsystem_id"`
	Bus         uint32            `toml:"bus"`
	Slot        uint32            `toml:"slot"`
	Busy        bool              `toml:"busy"`      // locked by another process
	Registers   map[uint32]uint32 `toml:"registers"` // initial register values

	// ClearOnWrite lists write-one-to-clear status registers.
	ClearOnWrite []uint32 `toml:"clear_on_write"`
}

// Stats counts calls into the driver.
type Stats struct {
	Loads    int
	Unloads  int
	Probes   int
	Acquires int
	Releases int
}

// Driver is a simulated hwdrv.Driver. It is safe for concurrent use because
// the acquisition goroutine touches registers while the control path runs.
type Driver struct {
	mu      sync.Mutex
	cards   []*device
	loaded  bool
	loadErr error
	stats   Stats
	logger  *slog.Logger
}

type device struct {
	card   Card
	regs   map[uint32]uint32
	locked bool
}

// New creates a simulated bus containing the given cards, in bus order.
func New(logger *slog.Logger, cards ...Card) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{logger: logger}
	for _, c := range cards {
		d.cards = append(d.cards, newDevice(c))
	}
	return d
}

func newDevice(c Card) *device {
	regs := make(map[uint32]uint32, len(c.Registers))
	for off, v := range c.Registers {
		regs[off] = v
	}
	return &device{card: c, regs: regs}
}

// SetLoadError makes subsequent Load calls fail with err (nil clears it).
func (d *Driver) SetLoadError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadErr = err
}

// SetBusy marks the index-th card as locked by a foreign process.
func (d *Driver) SetBusy(index int, busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards[index].card.Busy = busy
}

// AddCard plugs another card into the bus.
func (d *Driver) AddCard(c Card) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards = append(d.cards, newDevice(c))
}

// Loaded reports whether the I/O layer is currently loaded.
func (d *Driver) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Locked reports whether the index-th card is held by this process.
func (d *Driver) Locked(index int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cards[index].locked
}

// Stats returns a snapshot of the call counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Register returns the current value of a register of the index-th card.
func (d *Driver) Register(index int, offset uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cards[index].regs[offset]
}

// SetRegister pokes a register of the index-th card, as the hardware would.
func (d *Driver) SetRegister(index int, offset, value uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards[index].regs[offset] = value
}

// Load implements hwdrv.Driver.
func (d *Driver) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Loads++
	if d.loadErr != nil {
		return d.loadErr
	}
	if d.loaded {
		return hwdrv.NewLoadError(hwdrv.LoadFailed, fmt.Errorf("already loaded"))
	}
	d.loaded = true
	d.logger.Debug("Simulated I/O layer loaded", "cards", len(d.cards))
	return nil
}

// Unload implements hwdrv.Driver. Any resource still held is dropped.
func (d *Driver) Unload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Unloads++
	for _, dev := range d.cards {
		dev.locked = false
	}
	d.loaded = false
	d.logger.Debug("Simulated I/O layer unloaded")
}

// Probe implements hwdrv.Driver.
func (d *Driver) Probe(vendorID, deviceID uint16, ordinal int) (hwdrv.Probe, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Probes++
	if !d.loaded {
		return hwdrv.Probe{}, false
	}
	dev := d.find(vendorID, deviceID, ordinal)
	if dev == nil {
		return hwdrv.Probe{}, false
	}
	return hwdrv.Probe{
		SubsystemID: dev.card.SubsystemID,
		Bus:         dev.card.Bus,
		Slot:        dev.card.Slot,
	}, true
}

// Acquire implements hwdrv.Driver.
func (d *Driver) Acquire(req hwdrv.AcquireRequest) (hwdrv.Resource, error) {
	d.mu.Lock()
	d.stats.Acquires++
	if !d.loaded {
		d.mu.Unlock()
		return nil, hwdrv.ErrNotLoaded
	}
	dev := d.find(req.VendorID, req.DeviceID, req.Ordinal)
	if dev == nil {
		d.mu.Unlock()
		return nil, hwdrv.ErrDeviceNotFound
	}
	if dev.locked || dev.card.Busy {
		d.mu.Unlock()
		return nil, hwdrv.ErrDeviceBusy
	}
	dev.locked = true
	d.mu.Unlock()

	res := &resource{drv: d, dev: dev}
	if req.ACPIAware && req.Reset != nil {
		if err := req.Reset(res); err != nil {
			_ = res.Release()
			return nil, fmt.Errorf("chip reset failed: %w", err)
		}
	}
	return res, nil
}

func (d *Driver) find(vendorID, deviceID uint16, ordinal int) *device {
	n := 0
	for _, dev := range d.cards {
		if dev.card.VendorID != vendorID || dev.card.DeviceID != deviceID {
			continue
		}
		if n == ordinal {
			return dev
		}
		n++
	}
	return nil
}

type resource struct {
	drv      *Driver
	dev      *device
	released bool
}

func (r *resource) ReadRegister(offset uint32) (uint32, error) {
	r.drv.mu.Lock()
	defer r.drv.mu.Unlock()
	if r.released || !r.dev.locked {
		return 0, hwdrv.ErrNotLoaded
	}
	return r.dev.regs[offset], nil
}

func (r *resource) WriteRegister(offset, value uint32) error {
	r.drv.mu.Lock()
	defer r.drv.mu.Unlock()
	if r.released || !r.dev.locked {
		return hwdrv.ErrNotLoaded
	}
	for _, w1c := range r.dev.card.ClearOnWrite {
		if w1c == offset {
			r.dev.regs[offset] &^= value
			return nil
		}
	}
	r.dev.regs[offset] = value
	return nil
}

func (r *resource) Address() hwdrv.Address {
	return hwdrv.Address{Bus: r.dev.card.Bus, Slot: r.dev.card.Slot}
}

func (r *resource) Release() error {
	r.drv.mu.Lock()
	defer r.drv.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	r.dev.locked = false
	r.drv.stats.Releases++
	return nil
}
