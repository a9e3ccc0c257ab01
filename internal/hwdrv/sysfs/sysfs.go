//go:build linux

// Package sysfs implements the PCI I/O layer on Linux through sysfs: devices
// are enumerated from /sys/bus/pci/devices, BAR0 is mapped from the device's
// resource0 file and exclusive access is arbitrated with flock on a per-device
// lock file, so a second process opening the same card fails fast as busy.
package sysfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/smazurov/vbinode/internal/hwdrv"
)

const (
	defaultRoot    = "/sys/bus/pci/devices"
	defaultLockDir = "/run/vbinode"
)

// Options configures the sysfs driver.
type Options struct {
	Root    string // sysfs PCI device directory
	LockDir string // directory holding per-device lock files
	Logger  *slog.Logger
}

// Driver is a hwdrv.Driver backed by Linux sysfs.
type Driver struct {
	root    string
	lockDir string
	logger  *slog.Logger

	mu     sync.Mutex
	loaded bool
	held   map[string]*resource
}

// New creates a sysfs I/O layer.
func New(opts Options) *Driver {
	if opts.Root == "" {
		opts.Root = defaultRoot
	}
	if opts.LockDir == "" {
		opts.LockDir = defaultLockDir
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		root:    opts.Root,
		lockDir: opts.LockDir,
		logger:  opts.Logger,
		held:    make(map[string]*resource),
	}
}

// Load checks that the PCI hierarchy is readable and prepares the lock directory.
func (d *Driver) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.ReadDir(d.root); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return hwdrv.NewLoadError(hwdrv.LoadNotInstalled, err)
		case errors.Is(err, os.ErrPermission):
			return hwdrv.NewLoadError(hwdrv.LoadAccessDenied, err)
		default:
			return hwdrv.NewLoadError(hwdrv.LoadFailed, err)
		}
	}
	if err := os.MkdirAll(d.lockDir, 0o755); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return hwdrv.NewLoadError(hwdrv.LoadAccessDenied, err)
		}
		return hwdrv.NewLoadError(hwdrv.LoadFailed, err)
	}

	d.loaded = true
	d.logger.Debug("sysfs I/O layer loaded", "root", d.root)
	return nil
}

// Unload releases every resource still held and marks the layer unloaded.
func (d *Driver) Unload() {
	d.mu.Lock()
	held := make([]*resource, 0, len(d.held))
	for _, r := range d.held {
		held = append(held, r)
	}
	d.loaded = false
	d.mu.Unlock()

	for _, r := range held {
		if err := r.Release(); err != nil {
			d.logger.Warn("Failed to release device on unload", "device", r.name, "error", err)
		}
	}
	d.logger.Debug("sysfs I/O layer unloaded")
}

// Probe finds the ordinal-th device with the given ids, in bus address order.
func (d *Driver) Probe(vendorID, deviceID uint16, ordinal int) (hwdrv.Probe, bool) {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()
	if !loaded {
		return hwdrv.Probe{}, false
	}

	name, ok := d.find(vendorID, deviceID, ordinal)
	if !ok {
		return hwdrv.Probe{}, false
	}
	bus, slot, err := parseAddress(name)
	if err != nil {
		d.logger.Debug("Unparsable PCI address", "device", name, "error", err)
		return hwdrv.Probe{}, false
	}

	dir := filepath.Join(d.root, name)
	subVendor, _ := readHex(filepath.Join(dir, "subsystem_vendor"))
	subDevice, _ := readHex(filepath.Join(dir, "subsystem_device"))

	return hwdrv.Probe{
		SubsystemID: subDevice<<16 | subVendor,
		Bus:         bus,
		Slot:        slot,
	}, true
}

// Acquire locks the device and maps its first BAR.
func (d *Driver) Acquire(req hwdrv.AcquireRequest) (hwdrv.Resource, error) {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()
	if !loaded {
		return nil, hwdrv.ErrNotLoaded
	}

	name, ok := d.find(req.VendorID, req.DeviceID, req.Ordinal)
	if !ok {
		return nil, hwdrv.ErrDeviceNotFound
	}
	bus, slot, err := parseAddress(name)
	if err != nil {
		return nil, fmt.Errorf("invalid PCI address %q: %w", name, err)
	}

	lock, err := os.OpenFile(filepath.Join(d.lockDir, name+".lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lock.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, hwdrv.ErrDeviceBusy
		}
		return nil, fmt.Errorf("failed to lock device: %w", err)
	}

	dir := filepath.Join(d.root, name)
	// Enabling may fail on devices the kernel already enabled.
	_ = os.WriteFile(filepath.Join(dir, "enable"), []byte("1"), 0o600)

	bar, err := os.OpenFile(filepath.Join(dir, "resource0"), os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		unlock(lock)
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("no access to registers of %s: %w", name, err)
		}
		return nil, fmt.Errorf("failed to open BAR0 of %s: %w", name, err)
	}
	info, err := bar.Stat()
	if err != nil {
		bar.Close()
		unlock(lock)
		return nil, fmt.Errorf("failed to stat BAR0: %w", err)
	}
	mem, err := unix.Mmap(int(bar.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		bar.Close()
		unlock(lock)
		return nil, fmt.Errorf("failed to map BAR0: %w", err)
	}

	res := &resource{
		drv:  d,
		name: name,
		addr: hwdrv.Address{Bus: bus, Slot: slot},
		lock: lock,
		bar:  bar,
		mem:  mem,
	}

	d.mu.Lock()
	d.held[name] = res
	d.mu.Unlock()

	if req.ACPIAware && req.Reset != nil {
		if err := req.Reset(res); err != nil {
			_ = res.Release()
			return nil, fmt.Errorf("chip reset failed: %w", err)
		}
	}

	d.logger.Debug("Device acquired", "device", name, "bar_size", len(mem))
	return res, nil
}

// find lists the device directories in address order and returns the
// ordinal-th one matching vendor and device id.
func (d *Driver) find(vendorID, deviceID uint16, ordinal int) (string, bool) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		dir := filepath.Join(d.root, name)
		vendor, err := readHex(filepath.Join(dir, "vendor"))
		if err != nil || uint16(vendor) != vendorID {
			continue
		}
		device, err := readHex(filepath.Join(dir, "device"))
		if err != nil || uint16(device) != deviceID {
			continue
		}
		if n == ordinal {
			return name, true
		}
		n++
	}
	return "", false
}

// parseAddress extracts bus and slot from a name like "0000:03:05.0".
func parseAddress(name string) (bus, slot uint32, err error) {
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("expected domain:bus:slot.func")
	}
	b, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return 0, 0, err
	}
	slotFunc := strings.SplitN(parts[2], ".", 2)
	s, err := strconv.ParseUint(slotFunc[0], 16, 8)
	if err != nil {
		return 0, 0, err
	}
	return uint32(b), uint32(s), nil
}

func readHex(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x"), 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}

type resource struct {
	drv  *Driver
	name string
	addr hwdrv.Address
	lock *os.File
	bar  *os.File

	mu  sync.Mutex
	mem []byte
}

func (r *resource) ReadRegister(offset uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.word(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

func (r *resource) WriteRegister(offset, value uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.word(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, value)
	return nil
}

// word must be called with r.mu held.
func (r *resource) word(offset uint32) (*uint32, error) {
	if r.mem == nil {
		return nil, hwdrv.ErrNotLoaded
	}
	if offset%4 != 0 || int(offset)+4 > len(r.mem) {
		return nil, fmt.Errorf("register offset 0x%x outside BAR0", offset)
	}
	return (*uint32)(unsafe.Pointer(&r.mem[offset])), nil
}

func (r *resource) Address() hwdrv.Address {
	return r.addr
}

func (r *resource) Release() error {
	r.mu.Lock()
	if r.mem == nil {
		r.mu.Unlock()
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	r.mu.Unlock()

	r.bar.Close()
	unlock(r.lock)

	r.drv.mu.Lock()
	delete(r.drv.held, r.name)
	r.drv.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to unmap BAR0: %w", err)
	}
	return nil
}
