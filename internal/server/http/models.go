package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/deepvoice/internal/service"
)

type (
	ModelsResponseDTO struct {
		Models     []service.ModelInfo `json:"models"`
		MockActive bool                `json:"mock_active" doc:"Whether detections are currently fabricated"`
	}

	ModelsOutput struct {
		Body ModelsResponseDTO
	}
)

// ModelsHandler lists the detector models.
type ModelsHandler struct {
	detector *service.Detector
}

// NewModelsHandler creates a new ModelsHandler instance.
func NewModelsHandler(api huma.API, detector *service.Detector) *ModelsHandler {
	h := &ModelsHandler{detector: detector}

	huma.Register(api, huma.Operation{
		OperationID:   "list-models",
		Method:        http.MethodGet,
		Path:          "/api/models",
		Summary:       "List detector models and their status",
		Tags:          []string{"models"},
		DefaultStatus: http.StatusOK,
	}, h.handleList)

	return h
}

func (h *ModelsHandler) handleList(ctx context.Context, _ *struct{}) (*ModelsOutput, error) {
	return &ModelsOutput{
		Body: ModelsResponseDTO{
			Models:     h.detector.Models(),
			MockActive: h.detector.MockActive(),
		},
	}, nil
}
