package models

import "github.com/smazurov/vbinode/internal/updater"

type UpdateStatusResponse struct {
	Body updater.Status
}

type UpdateCheckResponse struct {
	Body updater.Info
}

// UpdateActionResponse answers apply and rollback. The process restarts
// shortly after it is sent.
type UpdateActionResponse struct {
	Body struct {
		Action  string        `json:"action" enum:"apply,rollback" doc:"Action performed"`
		State   updater.State `json:"state" example:"restarting" doc:"Update state after the action"`
		Message string        `json:"message" example:"Update applied, restarting" doc:"Status message"`
	}
}
