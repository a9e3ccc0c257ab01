package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/vbinode/internal/events"
	"github.com/smazurov/vbinode/internal/metrics/exporters"
)

// registerMetricsRoutes registers the capture statistics SSE endpoint.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "VBI capture statistics, the current values first and then every export interval",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"vbi-stats": events.VBIStatsEvent{},
	}, func(ctx context.Context, input *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribe := events.SubscribeToChannel[events.VBIStatsEvent](s.eventBus, eventCh)
		defer unsubscribe()

		if err := send.Data(exporters.Snapshot()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
