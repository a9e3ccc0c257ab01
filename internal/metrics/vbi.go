package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	vbiFields = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vbinode",
		Subsystem: "vbi",
		Name:      "fields_total",
		Help:      "Video fields captured",
	})

	vbiLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vbinode",
		Subsystem: "vbi",
		Name:      "lines_total",
		Help:      "VBI lines captured",
	})

	vbiFieldRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vbinode",
		Subsystem: "vbi",
		Name:      "field_rate",
		Help:      "Fields captured per second over the last sample interval",
	})

	// Local cache for SSE exporter access.
	vbiCache   VBIStats
	vbiCacheMu sync.RWMutex
)

// VBIStats is the latest capture throughput sample.
type VBIStats struct {
	Fields    uint64
	Lines     uint64
	FieldRate float64
	LastField time.Time
	Failed    bool
}

// RecordVBISample publishes a throughput sample. Counter deltas are taken
// against the previous sample; values that go backwards are ignored.
func RecordVBISample(s VBIStats) {
	vbiCacheMu.Lock()
	prev := vbiCache
	vbiCache = s
	vbiCacheMu.Unlock()

	if s.Fields > prev.Fields {
		vbiFields.Add(float64(s.Fields - prev.Fields))
	}
	if s.Lines > prev.Lines {
		vbiLines.Add(float64(s.Lines - prev.Lines))
	}
	vbiFieldRate.Set(s.FieldRate)
	SetAcquisitionFailed(s.Failed)
}

// GetVBIStats returns the latest sample.
func GetVBIStats() VBIStats {
	vbiCacheMu.RLock()
	defer vbiCacheMu.RUnlock()
	return vbiCache
}
