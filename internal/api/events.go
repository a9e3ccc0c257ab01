package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/vbinode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of acquisition state changes, failures, bus scans, applied configuration and peer mode changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"acquisition-state": events.AcquisitionStateChangedEvent{},
		"acquisition-error": events.AcquisitionFailedEvent{},
		"cards-scanned":     events.CardsScannedEvent{},
		"config-applied":    events.ConfigAppliedEvent{},
		"peer-mode":         events.PeerModeChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.AcquisitionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.AcquisitionFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CardsScannedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigAppliedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PeerModeChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// The current state goes first so clients need no extra request.
		if s.hardware != nil {
			st := s.hardware.Status()
			if err := send.Data(events.AcquisitionStateChangedEvent{
				State:     string(st.State),
				Previous:  string(st.State),
				CardIndex: st.CardIndex,
				SessionID: st.SessionID,
				Reason:    "connected",
				Timestamp: timestamp(),
			}); err != nil {
				return
			}
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
