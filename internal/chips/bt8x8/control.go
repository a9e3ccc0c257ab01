package bt8x8

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/hwdrv"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

var (
	errNotOpen     = errors.New("bt8x8: chip not open")
	errAlreadyOpen = errors.New("bt8x8: chip already open")
)

// control implements chips.Control for one open chip.
//
// regMu serializes register access between the control path (configure,
// input switching) and the acquisition goroutine, so a live reconfiguration
// has completed all its writes before the next interrupt is serviced.
type control struct {
	buf    *vbibuf.Buffer
	logger *slog.Logger
	poll   time.Duration
	lockTO time.Duration

	regMu   sync.Mutex
	res     hwdrv.Resource
	params  chips.Params
	wdmStop bool
	pll     int

	prio atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
}

func (c *control) Open(res hwdrv.Resource, params chips.Params, wdmStop bool) error {
	if res == nil {
		return errNotOpen
	}
	c.regMu.Lock()
	defer c.regMu.Unlock()

	if c.res != nil {
		return errAlreadyOpen
	}
	if err := c.ResetChip(res); err != nil {
		return fmt.Errorf("bt8x8: reset failed: %w", err)
	}
	c.res = res
	c.params = params
	c.wdmStop = wdmStop
	c.logger.Debug("Bt8x8 chip opened",
		"address", res.Address().String(),
		"card_model", params.CardModel,
		"wdm_stop", wdmStop)
	return nil
}

func (c *control) Close() {
	c.StopThread()

	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.res == nil {
		return
	}
	if !c.wdmStop {
		if err := c.ResetChip(c.res); err != nil {
			c.logger.Debug("Chip reset on close failed", "error", err)
		}
	}
	c.res = nil
	c.logger.Debug("Bt8x8 chip closed")
}

func (c *control) Configure(prio chips.Priority, pllType int) error {
	c.prio.Store(int32(prio))

	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.res == nil {
		return errNotOpen
	}
	if err := c.programPLL(pllType); err != nil {
		return fmt.Errorf("bt8x8: PLL setup failed: %w", err)
	}
	c.pll = pllType
	return nil
}

// programPLL must be called with regMu held.
func (c *control) programPLL(pllType int) error {
	if pllType != PLL28 {
		// 35 MHz crystals sample at the PAL clock directly.
		if err := c.res.WriteRegister(regPLLXCI, 0); err != nil {
			return err
		}
		return c.res.WriteRegister(regTGCtrl, tgctrlNoPLL)
	}

	lo, hi, xci := pllDividers(xtal28, pllOutFreq)
	for _, w := range []struct{ reg, val uint32 }{
		{regTGCtrl, tgctrlNoPLL},
		{regPLLFLo, lo},
		{regPLLFHi, hi},
		{regPLLXCI, xci},
	} {
		if err := c.res.WriteRegister(w.reg, w.val); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(c.lockTO)
	for {
		status, err := c.res.ReadRegister(regDStatus)
		if err != nil {
			return err
		}
		if status&dstatusPLock != 0 {
			break
		}
		if time.Now().After(deadline) {
			// Like bttv, carry on: capture still works with a drifting clock.
			c.logger.Warn("PLL did not lock", "timeout", c.lockTO)
			break
		}
		time.Sleep(time.Millisecond)
	}
	return c.res.WriteRegister(regTGCtrl, tgctrlPLL)
}

func (c *control) StartThread() error {
	c.regMu.Lock()
	if c.res == nil {
		c.regMu.Unlock()
		return errNotOpen
	}
	if c.cancel != nil {
		c.regMu.Unlock()
		return nil
	}
	for _, w := range []struct{ reg, val uint32 }{
		{regIntStat, 0xffffffff},
		{regIntMask, intVSync | intErrors},
		{regCapCtl, capVBIEven | capVBIOdd},
		{regGPIODMACtl, dmaFIFOEnable | dmaRISCEnable},
	} {
		if err := c.res.WriteRegister(w.reg, w.val); err != nil {
			c.regMu.Unlock()
			return fmt.Errorf("bt8x8: failed to enable capture: %w", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.regMu.Unlock()

	go c.run(ctx, c.done)
	c.logger.Debug("Acquisition thread started", "priority", chips.Priority(c.prio.Load()).String())
	return nil
}

func (c *control) StopThread() {
	c.regMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.regMu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.res != nil {
		_ = c.res.WriteRegister(regGPIODMACtl, 0)
		_ = c.res.WriteRegister(regIntMask, 0)
		_ = c.res.WriteRegister(regCapCtl, 0)
	}
	c.logger.Debug("Acquisition thread stopped")
}

// run services chip interrupts until ctx is cancelled. It owns an OS thread
// so the requested scheduling priority sticks.
func (c *control) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	applied := chips.Priority(-1)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p := chips.Priority(c.prio.Load()); p != applied {
				if err := setThreadPriority(p); err != nil {
					c.logger.Debug("Failed to set acquisition priority", "priority", p.String(), "error", err)
				}
				applied = p
			}
			c.service()
		}
	}
}

func (c *control) service() {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.res == nil {
		return
	}
	stat, err := c.res.ReadRegister(regIntStat)
	if err != nil || stat == 0 {
		return
	}
	_ = c.res.WriteRegister(regIntStat, stat)

	if stat&intErrors != 0 {
		c.logger.Debug("Capture DMA error", "int_stat", fmt.Sprintf("0x%08x", stat))
	}
	if stat&intVSync != 0 {
		c.buf.CommitField(vbiLinesPer)
	}
}

func (c *control) SetVideoSource(cardModel, input int) error {
	cd, ok := lookupCard(cardModel)
	if !ok {
		return fmt.Errorf("bt8x8: unknown card model %d", cardModel)
	}
	if input < 0 || input >= cd.inputs {
		return fmt.Errorf("bt8x8: input %d out of range for %s", input, cd.name)
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.res == nil {
		return errNotOpen
	}

	iform, err := c.res.ReadRegister(regIForm)
	if err != nil {
		return err
	}
	iform = iform&^iformMuxMask | uint32(cd.muxsel[input])<<iformMuxShift
	if err := c.res.WriteRegister(regIForm, iform); err != nil {
		return err
	}

	for _, reg := range []uint32{regEControl, regOControl} {
		v, err := c.res.ReadRegister(reg)
		if err != nil {
			return err
		}
		if input == cd.svideo {
			v |= controlComp
		} else {
			v &^= controlComp
		}
		if err := c.res.WriteRegister(reg, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *control) IsInputATuner(cardModel, input int) bool {
	cd, ok := lookupCard(cardModel)
	return ok && cd.tuner != noInput && cd.tuner == input
}

func (c *control) IsVideoPresent() bool {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.res == nil {
		return false
	}
	status, err := c.res.ReadRegister(regDStatus)
	return err == nil && status&dstatusPres != 0
}

// ResetChip puts the chip into a quiet state: soft reset, DMA off, all
// interrupts masked and acknowledged.
func (c *control) ResetChip(res hwdrv.Resource) error {
	for _, w := range []struct{ reg, val uint32 }{
		{regSReset, 0},
		{regGPIODMACtl, 0},
		{regIntMask, 0},
		{regIntStat, 0xffffffff},
	} {
		if err := res.WriteRegister(w.reg, w.val); err != nil {
			return err
		}
	}
	return nil
}
