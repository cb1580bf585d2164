package tfserving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/backend"
)

func TestInstances(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}

	got := instances(data, []int64{1, 2, 3})
	require.Len(t, got, 1)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[[[1,2,3],[4,5,6]]]`, string(raw))

	raw, err = json.Marshal(instances(data, []int64{2, 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2,3],[4,5,6]]`, string(raw))
}

func TestFlatten(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal([]byte(`[[0.25],[0.75]]`), &v))
	assert.Equal(t, []float32{0.25, 0.75}, flatten(v, nil))
}

func TestInfer_ExternalEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/lstm:predict", r.URL.Path)

		var body predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Instances, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions": [[0.83]]}`))
	}))
	defer srv.Close()

	b := NewBackend("", nil, 0)
	resp, err := b.Infer(context.Background(), &backend.Request{
		ModelPath: "/models/lstm",
		Input:     make([]float32, 110),
		Shape:     []int64{1, 22, 5},
		Parameters: map[string]any{
			"endpoint":   srv.URL,
			"model_name": "lstm",
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.83, resp.Output[0], 1e-6)
	assert.Equal(t, backend.BackendProviderTFServing, resp.Metadata.Provider)
	assert.NoError(t, b.Close())
}

func TestInfer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "shape mismatch"}`))
	}))
	defer srv.Close()

	b := NewBackend("", nil, 0)
	_, err := b.Infer(context.Background(), &backend.Request{
		Input:      make([]float32, 26),
		Shape:      []int64{1, 26},
		Parameters: map[string]any{"endpoint": srv.URL},
	})
	assert.ErrorContains(t, err, "shape mismatch")
}

func TestInfer_ShapeMismatch(t *testing.T) {
	b := NewBackend("", nil, 0)
	_, err := b.Infer(context.Background(), &backend.Request{
		Input: make([]float32, 3),
		Shape: []int64{1, 26},
	})
	assert.ErrorIs(t, err, backend.ErrInvalidInput)
}

func TestInfer_NoEndpoint(t *testing.T) {
	b := NewBackend("", nil, 0)
	_, err := b.Infer(context.Background(), &backend.Request{
		Input: make([]float32, 26),
		Shape: []int64{1, 26},
	})
	assert.Error(t, err)
}
