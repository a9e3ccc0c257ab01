// Package collectors samples runtime sources into the metrics package.
package collectors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/vbinode/internal/metrics"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

// VBICollector samples the shared acquisition buffer.
type VBICollector struct {
	logger   *slog.Logger
	buf      *vbibuf.Buffer
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	lastFields uint64
	lastAt     time.Time
}

// NewVBICollector creates a collector for buf.
func NewVBICollector(buf *vbibuf.Buffer, logger *slog.Logger) *VBICollector {
	return &VBICollector{
		logger:   logger,
		buf:      buf,
		interval: 5 * time.Second,
	}
}

// Start begins sampling until ctx is done or Stop is called.
func (c *VBICollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop stops sampling and waits for the goroutine to exit.
func (c *VBICollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *VBICollector) run(ctx context.Context) {
	defer c.wg.Done()
	c.logger.Debug("Starting VBI metrics collection", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.collect(now)
		}
	}
}

func (c *VBICollector) collect(now time.Time) {
	fields := c.buf.Fields()

	var rate float64
	if !c.lastAt.IsZero() && fields >= c.lastFields {
		if elapsed := now.Sub(c.lastAt).Seconds(); elapsed > 0 {
			rate = float64(fields-c.lastFields) / elapsed
		}
	}
	c.lastFields, c.lastAt = fields, now

	metrics.RecordVBISample(metrics.VBIStats{
		Fields:    fields,
		Lines:     c.buf.Lines(),
		FieldRate: rate,
		LastField: c.buf.LastField(),
		Failed:    c.buf.HasFailed(),
	})
}
