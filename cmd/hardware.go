// Package cmd holds the vbinode subcommands and the hardware stack they
// share with the daemon.
package cmd

import (
	"fmt"
	"time"

	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/chips/bt8x8"
	"github.com/smazurov/vbinode/internal/hwdrv"
	"github.com/smazurov/vbinode/internal/hwdrv/sim"
	"github.com/smazurov/vbinode/internal/hwdrv/sysfs"
	"github.com/smazurov/vbinode/internal/logging"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

// I/O layer names accepted by --io.
const (
	IOSysfs = "sysfs"
	IOSim   = "sim"
)

// HardwareOptions selects the I/O layer and tunes the chip driver.
type HardwareOptions struct {
	IO       string // sysfs or sim
	SimCards string // TOML file with simulated cards, sim only
	Root     string // sysfs PCI device directory
	LockDir  string

	PollInterval time.Duration
}

// Hardware is the assembled acquisition stack.
type Hardware struct {
	Driver     hwdrv.Driver
	Buffer     *vbibuf.Buffer
	Resolver   *chips.Resolver
	Controller *acq.Controller
}

// NewHardware builds the I/O layer, registers the supported chip families
// and creates the acquisition controller.
func NewHardware(opts HardwareOptions) (*Hardware, error) {
	var drv hwdrv.Driver
	switch opts.IO {
	case IOSysfs, "":
		drv = sysfs.New(sysfs.Options{
			Root:    opts.Root,
			LockDir: opts.LockDir,
			Logger:  logging.GetLogger("hwdrv"),
		})
	case IOSim:
		var cards []sim.Card
		if opts.SimCards != "" {
			var err error
			if cards, err = sim.LoadCards(opts.SimCards); err != nil {
				return nil, err
			}
		}
		drv = sim.New(logging.GetLogger("hwdrv"), cards...)
	default:
		return nil, fmt.Errorf("unknown I/O layer %q (want %s or %s)", opts.IO, IOSysfs, IOSim)
	}

	buf := vbibuf.New()
	resolver := chips.NewResolver()
	bt8x8.Register(resolver, bt8x8.Options{
		Buffer:       buf,
		Logger:       logging.GetLogger("chips"),
		PollInterval: opts.PollInterval,
	})

	ctl := acq.NewController(acq.Options{
		Driver:   drv,
		Resolver: resolver,
		Buffer:   buf,
		Logger:   logging.GetLogger("acq"),
	})
	return &Hardware{Driver: drv, Buffer: buf, Resolver: resolver, Controller: ctl}, nil
}
