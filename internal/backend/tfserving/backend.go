// Package tfserving classifies through a TensorFlow Serving REST endpoint,
// either an external one or a sidecar started through backend.ServerManager.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/mapsafe"
)

const (
	defaultModelName = "deepvoice"
	defaultBasePort  = 8501
	serverName       = "tfserving"
)

// Backend implements backend.Backend for TensorFlow Serving.
type Backend struct {
	binPath  string
	servers  *backend.ServerManager
	client   *http.Client
	ports    map[string]int
	nextPort int
	mu       sync.Mutex
}

// NewBackend creates a TF Serving backend. binPath is the tensorflow_model_server
// binary and may be empty when every model sets an "endpoint" parameter.
func NewBackend(binPath string, servers *backend.ServerManager, basePort int) *Backend {
	if basePort == 0 {
		basePort = defaultBasePort
	}
	return &Backend{
		binPath:  binPath,
		servers:  servers,
		client:   &http.Client{Timeout: 30 * time.Second},
		ports:    make(map[string]int),
		nextPort: basePort,
	}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderTFServing
}

type predictRequest struct {
	Instances []any `json:"instances"`
}

type predictResponse struct {
	Predictions []any  `json:"predictions"`
	Error       string `json:"error,omitempty"`
}

// Infer posts the input to /v1/models/<name>:predict.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if int64(len(req.Input)) != backend.Elements(req.Shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v", backend.ErrInvalidInput, len(req.Input), req.Shape)
	}

	name := mapsafe.Get(req.Parameters, "model_name", defaultModelName)

	baseURL, err := b.endpoint(req, name)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(predictRequest{Instances: instances(req.Input, req.Shape)})
	if err != nil {
		return nil, fmt.Errorf("tfserving: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(baseURL, "/"), name)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tfserving: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tfserving: predict: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tfserving: read response: %w", err)
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tfserving: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, fmt.Errorf("tfserving: predict failed with status %d: %s", resp.StatusCode, out.Error)
	}

	values := flatten(out.Predictions, nil)
	if len(values) == 0 {
		return nil, backend.ErrEmptyOutput
	}

	return &backend.Response{
		Output: values,
		Metadata: &backend.ResponseMetadata{
			Provider:  b.Provider(),
			Model:     name,
			Timestamp: time.Now(),
			Latency:   time.Since(start),
			BackendSpecific: map[string]any{
				"endpoint": url,
			},
		},
	}, nil
}

// endpoint returns the base URL for the model, starting a sidecar if needed.
func (b *Backend) endpoint(req *backend.Request, name string) (string, error) {
	if ep := mapsafe.Get(req.Parameters, "endpoint", ""); ep != "" {
		return ep, nil
	}
	if b.binPath == "" || b.servers == nil {
		return "", fmt.Errorf("tfserving: no endpoint configured and no server binary for %s", name)
	}

	b.mu.Lock()
	port, ok := b.ports[req.ModelPath]
	if !ok {
		port = b.nextPort
		b.nextPort++
		b.ports[req.ModelPath] = port
	}
	b.mu.Unlock()

	err := b.servers.StartServer(backend.ServerConfig{
		Name:    serverName,
		BinPath: b.binPath,
		Port:    port,
		Args: []string{
			"--rest_api_port=" + strconv.Itoa(port),
			"--port=" + strconv.Itoa(port+1000),
			"--model_name=" + name,
			"--model_base_path=" + req.ModelPath,
		},
		HealthPath:   "/v1/models/" + name,
		ReadyTimeout: mapsafe.Seconds(req.Parameters, "ready_timeout_seconds", time.Minute),
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("http://localhost:%d", port), nil
}

// Release stops the sidecar serving modelPath, if one was started.
func (b *Backend) Release(modelPath string) error {
	b.mu.Lock()
	port, ok := b.ports[modelPath]
	delete(b.ports, modelPath)
	b.mu.Unlock()

	if !ok || b.servers == nil || !b.servers.IsRunning(serverName, port) {
		return nil
	}
	return b.servers.StopServer(serverName, port)
}

// Close stops every sidecar started by this backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	paths := make([]string, 0, len(b.ports))
	for p := range b.ports {
		paths = append(paths, p)
	}
	b.mu.Unlock()

	var first error
	for _, p := range paths {
		if err := b.Release(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// instances reshapes a flat row-major tensor into nested slices, one entry per
// batch element, the layout TF Serving's row format expects.
func instances(data []float32, shape []int64) []any {
	if len(shape) == 0 {
		return nil
	}
	nested := reshape(data, shape)
	if list, ok := nested.([]any); ok {
		return list
	}
	return []any{nested}
}

func reshape(data []float32, shape []int64) any {
	if len(shape) == 1 {
		out := make([]any, len(data))
		for i, v := range data {
			out[i] = v
		}
		return out
	}

	n := int(shape[0])
	stride := len(data) / max(n, 1)
	out := make([]any, n)
	for i := range n {
		out[i] = reshape(data[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}

// flatten collects every number from nested JSON arrays.
func flatten(v any, dst []float32) []float32 {
	switch x := v.(type) {
	case float64:
		return append(dst, float32(x))
	case []any:
		for _, e := range x {
			dst = flatten(e, dst)
		}
	}
	return dst
}
