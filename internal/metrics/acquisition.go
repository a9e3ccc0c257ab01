// Package metrics provides Prometheus metrics for the acquisition
// controller and the VBI capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// States lists every acquisition state value exported by the state gauge.
var States = []string{"disabled", "bound", "streaming", "slave_observing"}

var (
	acquisitionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vbinode",
		Subsystem: "acquisition",
		Name:      "state",
		Help:      "Current acquisition state, 1 for the active state",
	}, []string{"state"})

	acquisitionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vbinode",
		Subsystem: "acquisition",
		Name:      "starts_total",
		Help:      "Acquisition start attempts by result",
	}, []string{"result"})

	acquisitionFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vbinode",
		Subsystem: "acquisition",
		Name:      "failed",
		Help:      "Whether the acquisition is marked failed",
	})

	liveReconfigurations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vbinode",
		Subsystem: "acquisition",
		Name:      "live_reconfigurations_total",
		Help:      "Reconfigurations applied to a running acquisition without stopping it",
	})

	cardsDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vbinode",
		Name:      "cards_discovered",
		Help:      "Capture cards found by the last successful PCI scan",
	})
)

// SetAcquisitionState marks state as the only active state.
func SetAcquisitionState(state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		acquisitionState.WithLabelValues(s).Set(v)
	}
}

// RecordStart counts one start attempt.
func RecordStart(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	acquisitionStarts.WithLabelValues(result).Inc()
}

// SetAcquisitionFailed mirrors the buffer's failure flag.
func SetAcquisitionFailed(failed bool) {
	if failed {
		acquisitionFailed.Set(1)
		return
	}
	acquisitionFailed.Set(0)
}

// AddLiveReconfigurations counts reconfigurations applied without a restart.
func AddLiveReconfigurations(n int) {
	if n > 0 {
		liveReconfigurations.Add(float64(n))
	}
}

// SetCardsDiscovered sets the number of cards found by a scan.
func SetCardsDiscovered(n int) {
	cardsDiscovered.Set(float64(n))
}
