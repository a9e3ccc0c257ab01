package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vbinode/internal/api/models"
	"github.com/smazurov/vbinode/internal/updater"
)

// Updater is the self-update surface. *updater.Updater implements it.
type Updater interface {
	Check(ctx context.Context) (updater.Info, error)
	Apply(ctx context.Context) error
	Rollback(ctx context.Context) error
	Status() updater.Status
}

func (s *Server) registerUpdateRoutes() {
	svc := s.options.Updater

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update",
		Summary:     "Get Update Status",
		Description: "Get the current update state and backup availability",
		Tags:        []string{"update"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		return &models.UpdateStatusResponse{Body: svc.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "check-updates",
		Method:      http.MethodPost,
		Path:        "/api/update/check",
		Summary:     "Check for Updates",
		Description: "Check if a newer version is available without downloading",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateCheckResponse, error) {
		info, err := svc.Check(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateCheckResponse{Body: info}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/update/apply",
		Summary:     "Apply Update",
		Description: "Download and apply the available update. Acquisition stops and the service restarts.",
		Tags:        []string{"update"},
		Errors:      []int{400, 401, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := svc.Apply(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return actionResponse("apply", svc.Status().State, "Update applied, restarting"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/update/rollback",
		Summary:     "Rollback Update",
		Description: "Revert to the previously backed up version. Acquisition stops and the service restarts.",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := svc.Rollback(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return actionResponse("rollback", svc.Status().State, "Rollback complete, restarting"), nil
	})
}

func actionResponse(action string, state updater.State, msg string) *models.UpdateActionResponse {
	resp := &models.UpdateActionResponse{}
	resp.Body.Action = action
	resp.Body.State = state
	resp.Body.Message = msg
	return resp
}

// mapUpdateError converts updater errors to Huma HTTP errors.
func mapUpdateError(err error) error {
	msg := err.Error()
	var ue *updater.Error
	if errors.As(err, &ue) && ue.Message != "" {
		msg = ue.Message
	}
	switch updater.CodeOf(err) {
	case updater.CodeInvalidState:
		return huma.Error409Conflict(msg)
	case updater.CodeNoUpdate:
		return huma.Error400BadRequest(msg)
	case updater.CodeNotFound, updater.CodeNoBackup:
		return huma.Error404NotFound(msg)
	case updater.CodeDisabled:
		return huma.Error503ServiceUnavailable(msg)
	default:
		return huma.Error500InternalServerError(msg)
	}
}
