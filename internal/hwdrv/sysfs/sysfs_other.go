//go:build !linux

package sysfs

import (
	"errors"
	"log/slog"

	"github.com/smazurov/vbinode/internal/hwdrv"
)

// Options configures the sysfs driver.
type Options struct {
	Root    string
	LockDir string
	Logger  *slog.Logger
}

// Driver is unavailable outside Linux; Load always fails.
type Driver struct{}

// New creates a driver that reports the I/O layer as not installed.
func New(_ Options) *Driver {
	return &Driver{}
}

func (d *Driver) Load() error {
	return hwdrv.NewLoadError(hwdrv.LoadNotInstalled, errors.New("sysfs PCI access requires linux"))
}

func (d *Driver) Unload() {}

func (d *Driver) Probe(_, _ uint16, _ int) (hwdrv.Probe, bool) {
	return hwdrv.Probe{}, false
}

func (d *Driver) Acquire(_ hwdrv.AcquireRequest) (hwdrv.Resource, error) {
	return nil, hwdrv.ErrNotLoaded
}
