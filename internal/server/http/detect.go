package http

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/deepvoice/internal/service"
)

type (
	DetectResponseDTO struct {
		Label       string            `json:"label" example:"Real"`
		Probability float64           `json:"probability" minimum:"0" maximum:"1" example:"0.93"`
		Explanation string            `json:"explanation"`
		Metadata    *service.Metadata `json:"metadata,omitempty"`
	}
)

type (
	DetectInput struct {
		// RawBody stays an unbound form: a file input submitted empty
		// arrives as a plain value that huma cannot bind into a FormFile.
		RawBody multipart.Form
	}

	DetectOutput struct {
		Body DetectResponseDTO
	}
)

// DetectHandler handles HTTP requests for deepfake detection.
type DetectHandler struct {
	detector *service.Detector
}

// NewDetectHandler creates a new DetectHandler instance.
func NewDetectHandler(api huma.API, detector *service.Detector, maxUploadBytes int64) *DetectHandler {
	h := &DetectHandler{detector: detector}

	huma.Register(api, huma.Operation{
		OperationID:   "detect",
		Method:        http.MethodPost,
		Path:          "/api/detect",
		Summary:       "Classify an audio clip as genuine or AI-generated speech",
		Tags:          []string{"detect"},
		DefaultStatus: http.StatusOK,
		MaxBodyBytes:  maxUploadBytes,
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"multipart/form-data": {
					Schema: &huma.Schema{
						Type:     huma.TypeObject,
						Required: []string{audioField},
						Properties: map[string]*huma.Schema{
							audioField: {Type: huma.TypeString, Format: "binary", Description: "MP3, WAV or OGG clip"},
						},
					},
				},
			},
		},
		Errors:        []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusInternalServerError},
	}, h.handleDetect)

	return h
}

// audioField is the multipart field carrying the uploaded clip.
const audioField = "audio"

// uploadedAudio returns the clip part of the form, or the 400 error the client
// should see when it is missing or has no filename.
func uploadedAudio(form *multipart.Form) (*multipart.FileHeader, error) {
	if files := form.File[audioField]; len(files) > 0 {
		if strings.TrimSpace(files[0].Filename) == "" {
			return nil, huma.Error400BadRequest(MsgNoFileSelected)
		}
		return files[0], nil
	}

	// A file input submitted empty arrives as a plain form value.
	if _, ok := form.Value[audioField]; ok {
		return nil, huma.Error400BadRequest(MsgNoFileSelected)
	}
	return nil, huma.Error400BadRequest(MsgNoFileUploaded)
}

// handleDetect handles the detect operation.
func (h *DetectHandler) handleDetect(ctx context.Context, input *DetectInput) (*DetectOutput, error) {
	header, err := uploadedAudio(&input.RawBody)
	if err != nil {
		return nil, err
	}

	audioFile, err := header.Open()
	if err != nil {
		slog.Error("Failed to open upload", "filename", header.Filename, "error", err)
		return nil, huma.Error500InternalServerError(err.Error(), err)
	}
	defer audioFile.Close()

	result, err := h.detector.Detect(ctx, header.Filename, audioFile)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType):
			return nil, huma.Error400BadRequest(service.ErrUnsupportedFileType.Error(), err)
		case errors.Is(err, service.ErrFeatureExtraction):
			return nil, huma.Error400BadRequest(service.ErrFeatureExtraction.Error(), err)
		case errors.Is(err, service.ErrClassification):
			return nil, huma.Error500InternalServerError(service.ErrClassification.Error(), err)
		}
		slog.Error("Detection failed", "filename", header.Filename, "error", err)
		return nil, huma.Error500InternalServerError(err.Error(), err)
	}

	return &DetectOutput{
		Body: DetectResponseDTO{
			Label:       result.Label,
			Probability: result.Probability,
			Explanation: result.Explanation,
			Metadata:    &result.Metadata,
		},
	}, nil
}
