package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/vbinode/internal/events"
	"github.com/smazurov/vbinode/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter republishes the latest VBI sample on the event bus.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 5 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.eventBus.Publish(Snapshot())
		}
	}
}

// Snapshot returns the current VBI statistics as an event.
func Snapshot() events.VBIStatsEvent {
	return statsEvent(metrics.GetVBIStats())
}

func statsEvent(m metrics.VBIStats) events.VBIStatsEvent {
	ev := events.VBIStatsEvent{
		Fields:    m.Fields,
		Lines:     m.Lines,
		FieldRate: strconv.FormatFloat(m.FieldRate, 'f', 2, 64),
		Failed:    m.Failed,
	}
	if !m.LastField.IsZero() {
		ev.LastField = m.LastField.UTC().Format(time.RFC3339)
	}
	return ev
}
