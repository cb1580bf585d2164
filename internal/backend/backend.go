package backend

import (
	"context"
	"time"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	BackendProviderONNXRuntime BackendProvider = "onnxruntime"
	BackendProviderTFServing   BackendProvider = "tfserving"
	BackendProviderMock        BackendProvider = "mock"
)

// Backend defines the core interface for all classifier backends.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Infer executes inference and returns complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// ModelLocator is an optional interface for backends that can locate
// the actual model file to load or execute.
type ModelLocator interface {
	// ResolveModelPath resolves the real model path inside the base downloaded directory.
	ResolveModelPath(basePath string) (string, error)
}

// Releaser is an optional interface for backends that hold per-model resources
// (sessions, sidecar processes) which can be dropped when a model is evicted.
type Releaser interface {
	Release(modelPath string) error
}

// Request encapsulates all parameters for an inference call.
type Request struct {
	// ModelPath is the path to the model file or directory.
	ModelPath string

	// Input is the flattened, row-major input tensor.
	Input []float32

	// Shape is the input tensor shape, including the batch dimension.
	Shape []int64

	// Parameters contains backend-specific inference parameters.
	Parameters map[string]any
}

// Response contains the result of an inference operation.
type Response struct {
	// Output is the flattened output tensor. For a sigmoid head this is a
	// single value, the probability of class index 1.
	Output []float32

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	Timestamp       time.Time       `json:"timestamp"`
	Latency         time.Duration   `json:"latency_ns"`
	BackendSpecific map[string]any  `json:"backend_specific,omitempty"`
}

// Elements returns the number of values described by shape.
func Elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
