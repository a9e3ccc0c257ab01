package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/api/models"
)

// registerCardRoutes registers card discovery and query endpoints.
func (s *Server) registerCardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cards",
		Method:      http.MethodGet,
		Path:        "/api/cards",
		Summary:     "List Cards",
		Description: "Enumerate the capture cards on the PCI bus with their model names. When the driver cannot be loaded the cards remembered in the hardware file are returned alongside the error.",
		Tags:        []string{"cards"},
		Errors:      []int{401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CardListRequest) (*models.CardListResponse, error) {
		if input.Rescan {
			if _, err := s.hardware.Rescan(false); err != nil {
				return nil, mapAcqError(err)
			}
		}

		entries, err := s.hardware.EnumerateCards(acq.DriverPCI, true)
		if err != nil && entries == nil {
			return nil, mapAcqError(err)
		}

		resp := &models.CardListResponse{}
		resp.Body.Cards = make([]models.CardData, len(entries))
		for i, e := range entries {
			resp.Body.Cards[i] = models.CardData{
				SourceIndex: e.SourceIndex,
				ChipType:    formatChip(e.ChipType),
				Name:        e.Name,
			}
		}
		resp.Body.Count = len(entries)
		resp.Body.ScanStatus = s.hardware.Scanned().Status.String()
		if err != nil {
			resp.Body.Error = err.Error()
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-card-model",
		Method:      http.MethodGet,
		Path:        "/api/cards/{index}/models/{model}",
		Summary:     "Get Card Model Name",
		Description: "Resolve the name of a card model on the chip of a discovered card",
		Tags:        []string{"cards"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CardModelRequest) (*models.CardModelResponse, error) {
		name, ok := s.hardware.CardName(input.Index, input.Model)
		if !ok {
			return nil, huma.Error404NotFound("card model not known for this card")
		}
		resp := &models.CardModelResponse{}
		resp.Body.SourceIndex = input.Index
		resp.Body.CardModel = input.Model
		resp.Body.Name = name
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-card-inputs",
		Method:      http.MethodGet,
		Path:        "/api/cards/{index}/inputs",
		Summary:     "List Card Inputs",
		Description: "List the video inputs of a card model on a discovered card",
		Tags:        []string{"cards"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CardInputsRequest) (*models.CardInputsResponse, error) {
		names := s.hardware.InputNames(input.Index, input.Model, acq.DriverPCI)
		if len(names) == 0 {
			return nil, huma.Error404NotFound("no inputs known for this card")
		}
		resp := &models.CardInputsResponse{}
		resp.Body.Inputs = names
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "detect-card",
		Method:      http.MethodPost,
		Path:        "/api/cards/{index}/detect",
		Summary:     "Detect Card Parameters",
		Description: "Autodetect the card model and PLL type of a discovered card. The card is acquired briefly unless it is the one currently streaming.",
		Tags:        []string{"cards"},
		Errors:      []int{401, 404, 409, 422, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CardDetectRequest) (*models.CardParamsResponse, error) {
		p, err := s.hardware.QueryCardParams(input.Index, acq.CardParams{
			CardModel: input.Body.CardModel,
			TunerType: input.Body.TunerType,
			PLLType:   input.Body.PLLType,
		})
		if err != nil {
			return nil, mapAcqError(err)
		}
		resp := &models.CardParamsResponse{}
		resp.Body.CardModel = p.CardModel
		resp.Body.TunerType = p.TunerType
		resp.Body.PLLType = p.PLLType
		if name, ok := s.hardware.CardName(input.Index, p.CardModel); ok {
			resp.Body.Name = name
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "check-card",
		Method:      http.MethodPost,
		Path:        "/api/cards/check",
		Summary:     "Check Configured Card",
		Description: "Validate the configured card, model and input against the hardware",
		Tags:        []string{"cards"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CardCheckResponse, error) {
		resp := &models.CardCheckResponse{}
		resp.Body.Valid = s.hardware.CheckStored()
		return resp, nil
	})
}
