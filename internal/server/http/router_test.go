package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/audio/audiotest"
	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/backend/mock"
	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/model"
	"github.com/ekisa-team/deepvoice/internal/service"
)

func newRouter(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()

	backends := backend.NewRegistry()
	require.NoError(t, backends.Register(mock.NewBackend(nil)))

	detector, err := service.NewDetector(backends, model.NewRegistry(), config.Default())
	require.NoError(t, err)

	handler, _ := NewRouter(detector, opts)
	return handler
}

func defaultOptions() RouterOptions {
	return RouterOptions{Version: "test", MaxUploadBytes: config.DefaultMaxUploadBytes, CORSOrigins: []string{"*"}}
}

// upload builds a multipart body with one file part.
func upload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func do(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func postDetect(t *testing.T, h http.Handler, field, filename string, data []byte) (*httptest.ResponseRecorder, map[string]any) {
	body, contentType := upload(t, field, filename, data)
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", contentType)
	return do(h, req)
}

func TestHealth(t *testing.T) {
	h := newRouter(t, defaultOptions())

	rec, body := do(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "message": "API is running"}, body)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestResponses_NoSchemaLink(t *testing.T) {
	h := newRouter(t, defaultOptions())

	_, health := do(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotContains(t, health, "$schema")

	_, detect := postDetect(t, h, "file", "clip.wav", []byte("x"))
	assert.NotContains(t, detect, "$schema")
	assert.Len(t, detect, 1)

	_, models := do(h, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.NotContains(t, models, "$schema")
}

func TestRequestID_Echoed(t *testing.T) {
	h := newRouter(t, defaultOptions())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec, _ := do(h, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		h := newRouter(t, defaultOptions())
		req := httptest.NewRequest(http.MethodOptions, "/api/detect", nil)
		req.Header.Set("Origin", "https://example.com")
		rec, _ := do(h, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		opts := defaultOptions()
		opts.CORSOrigins = []string{"https://app.example.com"}
		h := newRouter(t, opts)

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec, _ := do(h, req)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec, _ = do(h, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestDetect(t *testing.T) {
	h := newRouter(t, defaultOptions())
	wav := audiotest.WAV(t, audiotest.Sine(440, 16000, 1), 16000, 1)

	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
		status   int
		errMsg   string
	}{
		{"missing field", "file", "clip.wav", wav, http.StatusBadRequest, "No file uploaded"},
		{"empty filename", "audio", "", wav, http.StatusBadRequest, "No file selected"},
		{"unsupported type", "audio", "clip.txt", wav, http.StatusBadRequest, "File type not supported. Please upload MP3, WAV, or OGG."},
		{"no extension", "audio", "clip", wav, http.StatusBadRequest, "File type not supported. Please upload MP3, WAV, or OGG."},
		{"undecodable", "audio", "clip.wav", []byte("definitely not a wav file"), http.StatusBadRequest, "Could not extract features from the audio file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := postDetect(t, h, tt.field, tt.filename, tt.data)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, map[string]any{"error": tt.errMsg}, body)
		})
	}

	t.Run("text field", func(t *testing.T) {
		body := &bytes.Buffer{}
		w := multipart.NewWriter(body)
		require.NoError(t, w.WriteField("audio", "x"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec, resp := do(h, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, map[string]any{"error": MsgNoFileSelected}, resp)
	})

	t.Run("success", func(t *testing.T) {
		rec, body := postDetect(t, h, "audio", "Clip.WAV", wav)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Contains(t, []any{"Real", "Deepfake"}, body["label"])
		assert.Contains(t, []any{
			service.ExplanationMockReal,
			service.ExplanationMockDeepfake,
		}, body["explanation"])

		probability, ok := body["probability"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, probability, mock.MinConfidence-1e-6)
		assert.LessOrEqual(t, probability, mock.MaxConfidence+1e-6)

		metadata, ok := body["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, metadata["mock"])
	})
}

func TestDetect_CompressedFormats(t *testing.T) {
	h := newRouter(t, defaultOptions())

	for _, name := range []string{"voice.mp3", "voice.ogg"} {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("..", "..", "audio", "testdata", name))
			require.NoError(t, err)

			rec, body := postDetect(t, h, "audio", name, data)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, []any{"Real", "Deepfake"}, body["label"])

			metadata, ok := body["metadata"].(map[string]any)
			require.True(t, ok)
			assert.Greater(t, metadata["duration_seconds"], 0.5)
		})
	}
}

func TestDetect_TooLarge(t *testing.T) {
	opts := defaultOptions()
	opts.MaxUploadBytes = 1024
	h := newRouter(t, opts)

	wav := audiotest.WAV(t, audiotest.Sine(440, 16000, 1), 16000, 1)
	rec, body := postDetect(t, h, "audio", "clip.wav", wav)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, map[string]any{"error": MsgFileTooLarge}, body)
}

func TestModels(t *testing.T) {
	h := newRouter(t, defaultOptions())

	rec, body := do(h, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["mock_active"])
}

func TestOpenAPI(t *testing.T) {
	h := newRouter(t, defaultOptions())

	rec, _ := do(h, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/detect")

	var doc struct {
		Paths map[string]map[string]struct {
			RequestBody struct {
				Content map[string]struct {
					Schema struct {
						Properties map[string]any `json:"properties"`
					} `json:"schema"`
				} `json:"content"`
			} `json:"requestBody"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	form := doc.Paths["/api/detect"]["post"].RequestBody.Content["multipart/form-data"]
	assert.Contains(t, form.Schema.Properties, "audio")
}

func TestNewError(t *testing.T) {
	err := NewError(http.StatusUnprocessableEntity, "validation failed", &huma.ErrorDetail{Message: "cannot read multipart form: no boundary"})
	assert.Equal(t, http.StatusBadRequest, err.GetStatus())
	assert.Equal(t, MsgNoFileUploaded, err.Error())

	err = NewError(http.StatusRequestEntityTooLarge, "request body is too large")
	assert.Equal(t, MsgFileTooLarge, err.Error())

	err = NewError(http.StatusInternalServerError, "Error during classification", assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, err.GetStatus())
	assert.Equal(t, "Error during classification", err.Error())
}
