package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/vbinode/internal/led"
)

// LEDStatusResponse is the status LED indication and board capabilities.
type LEDStatusResponse struct {
	Body struct {
		Enabled           bool     `json:"enabled" doc:"Whether the status LED is lit"`
		Pattern           string   `json:"pattern" example:"solid" doc:"Current pattern: solid while streaming, blink while bound, heartbeat after a failure"`
		AvailableTypes    []string `json:"available_types" doc:"LED types available on this board"`
		AvailablePatterns []string `json:"available_patterns" doc:"LED patterns available on this board"`
	}
}

// LEDRequest lights an LED other than the status LED.
type LEDRequest struct {
	Body struct {
		Type    string  `json:"type" example:"act" doc:"LED type (board-specific)"`
		Enabled bool    `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern *string `json:"pattern,omitempty" example:"blink" doc:"Optional LED pattern (solid, blink, heartbeat)"`
	}
}

// registerLEDRoutes registers status LED endpoints.
func (s *Server) registerLEDRoutes() {
	manager := s.options.LEDManager
	if manager == nil {
		s.logger.Debug("LED manager not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-leds",
		Method:      http.MethodGet,
		Path:        "/api/leds",
		Summary:     "Get Status LED",
		Description: "Get the acquisition status LED indication and the LEDs available on this board",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*LEDStatusResponse, error) {
		ind := manager.Current()
		resp := &LEDStatusResponse{}
		resp.Body.Enabled = ind.Enabled
		resp.Body.Pattern = ind.Pattern
		resp.Body.AvailableTypes = manager.GetController().Available()
		resp.Body.AvailablePatterns = manager.GetController().Patterns()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Control an auxiliary LED. The status LED follows acquisition and cannot be set.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *LEDRequest) (*struct{}, error) {
		if input.Body.Type == led.StatusLED {
			return nil, huma.Error409Conflict("the status LED is driven by acquisition state")
		}
		pattern := ""
		if input.Body.Pattern != nil {
			pattern = *input.Body.Pattern
		}
		if err := manager.GetController().Set(input.Body.Type, input.Body.Enabled, pattern); err != nil {
			if errors.Is(err, led.ErrUnknownLED) {
				return nil, huma.Error404NotFound("LED not available on this board", err)
			}
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	s.logger.Info("LED routes registered")
}
