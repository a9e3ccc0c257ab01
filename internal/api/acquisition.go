package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/api/models"
	"github.com/smazurov/vbinode/internal/supervisor"
)

// registerAcquisitionRoutes registers acquisition control endpoints.
func (s *Server) registerAcquisitionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-acquisition",
		Method:      http.MethodGet,
		Path:        "/api/acquisition",
		Summary:     "Get Acquisition Status",
		Description: "Get the acquisition state, the bound card and the failure flag",
		Tags:        []string{"acquisition"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AcquisitionStatusResponse, error) {
		return &models.AcquisitionStatusResponse{Body: toAPIStatus(s.hardware.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-acquisition-config",
		Method:      http.MethodGet,
		Path:        "/api/acquisition/config",
		Summary:     "Get Hardware Configuration",
		Description: "Get the hardware configuration including input and tuner state",
		Tags:        []string{"acquisition"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AcquisitionConfigResponse, error) {
		return &models.AcquisitionConfigResponse{Body: toAPIConfig(s.hardware.Config())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-acquisition-config",
		Method:      http.MethodPut,
		Path:        "/api/acquisition/config",
		Summary:     "Set Hardware Configuration",
		Description: "Apply and persist the hardware configuration. Running acquisition is reconfigured live where possible and restarted when the source changes.",
		Tags:        []string{"acquisition"},
		Errors:      []int{400, 401, 404, 409, 422, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.AcquisitionConfigRequest) (*models.AcquisitionConfigResponse, error) {
		settings, err := fromAPIConfig(input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid configuration", err)
		}
		if err := s.hardware.Configure(settings, supervisor.SourceAPI); err != nil {
			return nil, mapAcqError(err)
		}
		return &models.AcquisitionConfigResponse{Body: toAPIConfig(s.hardware.Config())}, nil
	})

	s.registerAction("start-acquisition", "start", "Start Acquisition", "Start acquisition with the current configuration", s.hardware.Start)
	s.registerAction("stop-acquisition", "stop", "Stop Acquisition", "Stop acquisition and release the card", func() error {
		s.hardware.Stop()
		return nil
	})
	s.registerAction("restart-acquisition", "restart", "Restart Acquisition", "Stop and start acquisition keeping the input and tuner state", s.hardware.Restart)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-acquisition-input",
		Method:      http.MethodPut,
		Path:        "/api/acquisition/input",
		Summary:     "Select Video Input",
		Description: "Select the video input. The selection is kept for the next start when acquisition is not running.",
		Tags:        []string{"acquisition"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.InputRequest) (*models.InputResponse, error) {
		if input.Body.TunerFreq != 0 {
			s.hardware.SetTuner(input.Body.TunerFreq, input.Body.Norm)
		}
		isTuner, err := s.hardware.SetInput(input.Body.Input, input.Body.Norm)
		if err != nil {
			return nil, mapAcqError(err)
		}
		resp := &models.InputResponse{}
		resp.Body.Input = input.Body.Input
		resp.Body.IsTuner = isTuner
		return resp, nil
	})
}

func (s *Server) registerAction(id, action, summary, description string, fn func() error) {
	huma.Register(s.api, huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        "/api/acquisition/" + action,
		Summary:     summary,
		Description: description,
		Tags:        []string{"acquisition"},
		Errors:      []int{401, 404, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AcquisitionStatusResponse, error) {
		if err := fn(); err != nil {
			return nil, mapAcqError(err)
		}
		return &models.AcquisitionStatusResponse{Body: toAPIStatus(s.hardware.Status())}, nil
	})
}

func toAPIStatus(st supervisor.Status) models.AcquisitionStatus {
	return models.AcquisitionStatus{
		Enabled:      st.Enabled,
		HasDriver:    st.HasDriver,
		State:        string(st.State),
		Mode:         string(st.Mode),
		CardIndex:    st.CardIndex,
		SessionID:    st.SessionID,
		Failed:       st.Failed,
		VideoPresent: st.VideoPresent,
		Peer:         st.Peer,
	}
}

func toAPIConfig(cfg acq.HardwareConfig) models.AcquisitionConfigData {
	return models.AcquisitionConfigData{
		AcquisitionConfig: models.AcquisitionConfig{
			Driver:      string(cfg.Driver),
			SourceIndex: cfg.SourceIndex,
			Priority:    cfg.Priority,
			ChipType:    formatChip(cfg.ChipType),
			CardModel:   cfg.CardModel,
			TunerType:   cfg.TunerType,
			PLLType:     cfg.PLLType,
			WDMStop:     cfg.WDMStop,
		},
		InputSource: cfg.InputSource,
		TunerFreq:   cfg.TunerFreq,
		TunerNorm:   cfg.TunerNorm,
	}
}

func fromAPIConfig(c models.AcquisitionConfig) (acq.Settings, error) {
	driver, err := acq.ParseDriverKind(c.Driver)
	if err != nil {
		return acq.Settings{}, err
	}
	chipType, err := parseChip(c.ChipType)
	if err != nil {
		return acq.Settings{}, err
	}
	return acq.Settings{
		Driver:      driver,
		SourceIndex: c.SourceIndex,
		Priority:    c.Priority,
		ChipType:    chipType,
		CardModel:   c.CardModel,
		TunerType:   c.TunerType,
		PLLType:     c.PLLType,
		WDMStop:     c.WDMStop,
	}, nil
}
