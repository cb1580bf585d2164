//go:build cgo

package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/mapsafe"
)

var (
	runtimeMu          sync.Mutex
	runtimeInitialized bool
)

// initRuntime loads the shared library once per process.
func initRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	if lib := findLibrary(libPath); lib != "" {
		ort.SetSharedLibraryPath(lib)
		slog.Debug("Using ONNX Runtime library", "path", lib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		if !strings.Contains(err.Error(), "already initialized") {
			return fmt.Errorf("%w: %w", backend.ErrRuntimeUnavailable, err)
		}
	}

	runtimeInitialized = true
	return nil
}

func destroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !runtimeInitialized {
		return nil
	}
	runtimeInitialized = false
	return ort.DestroyEnvironment()
}

type session struct {
	s      *ort.DynamicAdvancedSession
	input  string
	output string
	mu     sync.Mutex
	closed bool
}

// run executes the session unless Release destroyed it first.
func (s *session) run(inputs, outputs []ort.Value) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, nil
	}
	return true, s.s.Run(inputs, outputs)
}

// destroy releases the runtime session once no run is in flight.
func (s *session) destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.s.Destroy()
}

// Backend implements backend.Backend on top of ONNX Runtime. One session is
// kept per model path.
type Backend struct {
	libPath  string
	sessions map[string]*session
	mu       sync.Mutex
}

// NewBackend initialises ONNX Runtime. libPath may be empty to auto-detect.
func NewBackend(libPath string) (*Backend, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}

	return &Backend{
		libPath:  libPath,
		sessions: make(map[string]*session),
	}, nil
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderONNXRuntime
}

// Infer runs a single forward pass. Parameters "input_name" and "output_name"
// override the names read from the model.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(req.Input)) != backend.Elements(req.Shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v", backend.ErrInvalidInput, len(req.Input), req.Shape)
	}

	start := time.Now()

	input, err := ort.NewTensor(ort.NewShape(req.Shape...), req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}

	// A reload may release the session between lookup and run.
	var sess *session
	for ran := false; !ran; {
		if sess, err = b.session(req); err != nil {
			return nil, err
		}
		if ran, err = sess.run([]ort.Value{input}, outputs); err != nil {
			return nil, fmt.Errorf("onnxruntime: run failed: %w", err)
		}
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnxruntime: unexpected output type %T", outputs[0])
	}

	data := append([]float32(nil), tensor.GetData()...)
	if len(data) == 0 {
		return nil, backend.ErrEmptyOutput
	}

	return &backend.Response{
		Output: data,
		Metadata: &backend.ResponseMetadata{
			Provider:  b.Provider(),
			Model:     req.ModelPath,
			Timestamp: time.Now(),
			Latency:   time.Since(start),
			BackendSpecific: map[string]any{
				"input_name":   sess.input,
				"output_name":  sess.output,
				"output_shape": tensor.GetShape(),
			},
		},
	}, nil
}

// session returns the cached session for the request's model, creating it on first use.
func (b *Backend) session(req *backend.Request) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[req.ModelPath]; ok {
		return s, nil
	}

	path, err := resolveModelPath(req.ModelPath)
	if err != nil {
		return nil, err
	}

	inputName := mapsafe.Get(req.Parameters, "input_name", "")
	outputName := mapsafe.Get(req.Parameters, "output_name", "")

	if inputName == "" || outputName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(path)
		if err != nil {
			return nil, fmt.Errorf("onnxruntime: failed to inspect %s: %w", path, err)
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			return nil, fmt.Errorf("onnxruntime: model %s has no inputs or outputs", path)
		}
		if inputName == "" {
			inputName = inputs[0].Name
		}
		if outputName == "" {
			outputName = outputs[0].Name
		}
	}

	s, err := ort.NewDynamicAdvancedSession(path, []string{inputName}, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("onnxruntime: failed to create session: %w", err)
	}

	slog.Info("ONNX session created", "path", path, "input", inputName, "output", outputName)

	sess := &session{s: s, input: inputName, output: outputName}
	b.sessions[req.ModelPath] = sess
	return sess, nil
}

// Release drops the session for a model path, if any.
func (b *Backend) Release(modelPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[modelPath]
	if !ok {
		return nil
	}
	delete(b.sessions, modelPath)
	return s.destroy()
}

// Close destroys every session and the runtime environment.
func (b *Backend) Close() error {
	b.mu.Lock()
	var first error
	for path, s := range b.sessions {
		if err := s.destroy(); err != nil && first == nil {
			first = err
		}
		delete(b.sessions, path)
	}
	b.mu.Unlock()

	if err := destroyRuntime(); err != nil && first == nil {
		first = err
	}
	return first
}
