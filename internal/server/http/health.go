package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type (
	HealthResponseDTO struct {
		Status  string `json:"status" example:"ok"`
		Message string `json:"message" example:"API is running"`
	}

	HealthOutput struct {
		Body HealthResponseDTO
	}
)

// RegisterHealth registers GET /api/health.
func RegisterHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "health",
		Method:        http.MethodGet,
		Path:          "/api/health",
		Summary:       "Report that the API is running",
		Tags:          []string{"health"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
		return &HealthOutput{
			Body: HealthResponseDTO{Status: "ok", Message: "API is running"},
		}, nil
	})
}
