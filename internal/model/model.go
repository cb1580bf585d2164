package model

import (
	"sync"
	"time"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/config"
)

// ModelStatus is the lifecycle state of a registered model.
type ModelStatus string

const (
	ModelStatusUnloaded ModelStatus = "unloaded"
	ModelStatusLoading  ModelStatus = "loading"
	ModelStatusLoaded   ModelStatus = "loaded"
	ModelStatusFailed   ModelStatus = "failed"
	// ModelStatusUnavailable marks a model whose artifacts are absent. The
	// detector serves mock results in its place.
	ModelStatusUnavailable ModelStatus = "unavailable"
)

// ModelInstance is one detector model: its config, where its artifacts live,
// and the loaded scaler and label encoder.
type ModelInstance struct {
	ID        string
	Config    *config.ModelConfig
	Path      string
	ModelPath string
	Provider  backend.BackendProvider
	Scaler    *Scaler
	Encoder   *LabelEncoder
	LoadedAt  time.Time

	status ModelStatus
	err    error
	mu     sync.RWMutex
}

// NewModelInstance creates an unloaded instance.
func NewModelInstance(cfg *config.ModelConfig, id, path string) *ModelInstance {
	return &ModelInstance{
		ID:       id,
		Config:   cfg,
		Path:     path,
		Provider: backend.BackendProvider(cfg.Backend),
		status:   ModelStatusUnloaded,
	}
}

// SetStatus updates the status and clears any previous error.
func (m *ModelInstance) SetStatus(status ModelStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = status
	m.err = nil
	if status == ModelStatusLoaded {
		m.LoadedAt = time.Now()
	}
}

// Fail records err with the given status.
func (m *ModelInstance) Fail(status ModelStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = status
	m.err = err
}

// Status returns the current status.
func (m *ModelInstance) Status() ModelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.status
}

// Err returns the error that caused a failed or unavailable status.
func (m *ModelInstance) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.err
}

// Usable reports whether the model can serve real predictions.
func (m *ModelInstance) Usable() bool {
	return m.Status() == ModelStatusLoaded
}

// WindowSize returns the configured sliding window width.
func (m *ModelInstance) WindowSize() int {
	return m.Config.Window()
}

// Parameters returns the backend parameters, including tensor names.
func (m *ModelInstance) Parameters() map[string]any {
	params := make(map[string]any, len(m.Config.Parameters)+2)
	for k, v := range m.Config.Parameters {
		params[k] = v
	}
	if m.Config.InputName != "" {
		params["input_name"] = m.Config.InputName
	}
	if m.Config.OutputName != "" {
		params["output_name"] = m.Config.OutputName
	}
	return params
}
