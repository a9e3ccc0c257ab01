// Package bt8x8 implements the chip interface for Brooktree/Conexant
// Bt848, Bt849, Bt878 and Bt878A capture chips.
package bt8x8

import (
	"log/slog"
	"time"

	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

// Options configures the Bt8x8 family.
type Options struct {
	Buffer *vbibuf.Buffer
	Logger *slog.Logger

	// PollInterval is how often the acquisition goroutine services the chip.
	PollInterval time.Duration
	// PLLLockTimeout bounds the wait for the PLL to lock after programming.
	PLLLockTimeout time.Duration
}

// Family is the Bt8x8 chips.Family.
type Family struct {
	opts Options
	cfg  *cardConfig
}

// New creates the Bt8x8 family.
func New(opts Options) *Family {
	if opts.Buffer == nil {
		opts.Buffer = vbibuf.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.PLLLockTimeout <= 0 {
		opts.PLLLockTimeout = 500 * time.Millisecond
	}
	return &Family{opts: opts, cfg: &cardConfig{}}
}

func (f *Family) Name() string {
	return "bt8x8"
}

func (f *Family) Config() chips.Config {
	return f.cfg
}

func (f *Family) NewControl() chips.Control {
	return &control{
		buf:    f.opts.Buffer,
		logger: f.opts.Logger,
		poll:   f.opts.PollInterval,
		lockTO: f.opts.PLLLockTimeout,
	}
}

// Register installs the family for the Brooktree vendor id.
func Register(r *chips.Resolver, opts Options) *Family {
	f := New(opts)
	r.Register(chips.VendorBrooktree, f)
	return f
}
