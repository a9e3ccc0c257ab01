// Package exporters serves the metrics over HTTP scrape and SSE push.
package exporters

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// scrapeTimeout bounds one /metrics request; the VBI collector reads the
// shared buffer under its lock.
const scrapeTimeout = 5 * time.Second

// HTTPHandler returns the /metrics handler for the default registry.
func HTTPHandler(logger *slog.Logger) http.Handler {
	return handlerFor(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
}

func handlerFor(reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:            scrapeLog{logger},
		ErrorHandling:       promhttp.ContinueOnError,
		MaxRequestsInFlight: 2,
		Timeout:             scrapeTimeout,
		EnableOpenMetrics:   true,
	}))
}

// scrapeLog adapts slog to promhttp.Logger.
type scrapeLog struct{ logger *slog.Logger }

func (l scrapeLog) Println(v ...any) {
	l.logger.Warn("Metrics scrape error", "detail", fmt.Sprint(v...))
}
