package collectors

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/smazurov/vbinode/internal/metrics"
	"github.com/smazurov/vbinode/internal/vbibuf"
)

func TestVBICollectorRate(t *testing.T) {
	buf := vbibuf.New()
	c := NewVBICollector(buf, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	start := time.Now()
	c.collect(start)
	if got := metrics.GetVBIStats(); got.FieldRate != 0 {
		t.Errorf("First sample should have no rate, got %v", got.FieldRate)
	}

	for range 100 {
		buf.CommitField(16)
	}
	buf.SetFailed(true)
	c.collect(start.Add(2 * time.Second))

	got := metrics.GetVBIStats()
	if got.Fields != 100 || got.Lines != 1600 {
		t.Errorf("Unexpected counts %+v", got)
	}
	if got.FieldRate != 50 {
		t.Errorf("FieldRate = %v, want 50", got.FieldRate)
	}
	if !got.Failed || got.LastField.IsZero() {
		t.Errorf("Expected failed flag and a last field time, got %+v", got)
	}
}

func TestVBICollectorStartStop(t *testing.T) {
	buf := vbibuf.New()
	buf.CommitField(1)
	c := NewVBICollector(buf, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	c.interval = 10 * time.Millisecond

	c.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	if got := metrics.GetVBIStats(); got.Fields != 1 {
		t.Errorf("Collector did not sample the buffer: %+v", got)
	}
}
