package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/config/source"
	"github.com/ekisa-team/deepvoice/internal/envvar"
	"github.com/ekisa-team/deepvoice/internal/xfs"
)

const (
	scalerBaseName  = "scaler"
	encoderBaseName = "label_encoder"
)

// DownloaderFunc resolves the downloader for a source type.
type DownloaderFunc func(ctx context.Context, sourceType config.SourceType) (source.Downloader, error)

// Manager orchestrates the detector models' lifecycle.
type Manager struct {
	registry      *Registry
	backends      *backend.Registry
	getDownloader DownloaderFunc
	mu            sync.Mutex
}

// NewManager creates a Manager that checks providers against backends.
func NewManager(backends *backend.Registry) *Manager {
	return &Manager{
		registry:      NewRegistry(),
		backends:      backends,
		getDownloader: source.GetDownloader,
	}
}

// WithDownloader overrides how downloaders are resolved.
func (m *Manager) WithDownloader(fn DownloaderFunc) *Manager {
	m.getDownloader = fn
	return m
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// LoadModelsFromConfig resolves and loads every model assigned to the detector,
// then evicts models no longer assigned. A model that fails to load is kept in
// the registry with its error; the returned error joins every failure.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	modelsPath := ResolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	var errs []error
	loadedKeys := make(map[string]bool)

	for _, modelID := range cfg.Services.Detect.Models {
		if loadedKeys[modelID] {
			continue
		}

		modelConfig, ok := cfg.Models[modelID]
		if !ok {
			slog.Warn("Model not found in config", "model_id", modelID)
			continue
		}

		instance := m.load(ctx, modelID, &modelConfig, cfg.Features.NMFCC, modelsPath)
		// Backends cache by path, so an artifact replaced in place must drop
		// the previous session too.
		if old, ok := m.registry.Get(modelID); ok {
			m.release(old)
		}

		loadedKeys[modelID] = true
		m.registry.Set(instance)

		switch instance.Status() {
		case ModelStatusLoaded:
			slog.Info("Model loaded into registry", "model_id", modelID, "provider", instance.Provider, "path", instance.ModelPath)
		case ModelStatusUnavailable:
			slog.Warn("Model artifacts unavailable, detector will use mock results", "model_id", modelID, "error", instance.Err())
		default:
			slog.Error("Failed to load model", "model_id", modelID, "error", instance.Err())
			errs = append(errs, fmt.Errorf("model %s: %w", modelID, instance.Err()))
		}
	}

	m.registry.SetAssigned(cfg.Services.Detect.Models)

	// Delete models no longer assigned (if any)
	for _, instance := range m.registry.List() {
		if !loadedKeys[instance.ID] {
			m.release(instance)
			m.registry.Delete(instance.ID)
			slog.Info("Model unloaded successfully", "model_id", instance.ID)
		}
	}

	return errors.Join(errs...)
}

// load builds a single instance; its status records the outcome.
func (m *Manager) load(ctx context.Context, modelID string, modelConfig *config.ModelConfig, nMFCC int, modelsPath string) *ModelInstance {
	instance := NewModelInstance(modelConfig, modelID, "")
	instance.SetStatus(ModelStatusLoading)

	b, ok := m.backends.Get(instance.Provider)
	if !ok {
		instance.Fail(ModelStatusFailed, fmt.Errorf("%w: %s", backend.ErrNotFound, instance.Provider))
		return instance
	}

	// The mock backend needs no artifacts.
	if instance.Provider == backend.BackendProviderMock {
		instance.Encoder = DefaultLabelEncoder()
		instance.SetStatus(ModelStatusLoaded)
		return instance
	}

	modelSource, err := modelConfig.GetSource()
	if err != nil {
		instance.Fail(ModelStatusFailed, err)
		return instance
	}

	downloader, err := m.getDownloader(ctx, modelSource.Type())
	if err != nil {
		instance.Fail(ModelStatusFailed, err)
		return instance
	}

	downloadPath, _, err := downloader.Download(ctx, modelConfig, modelsPath)
	if err != nil {
		status := ModelStatusFailed
		if errors.Is(err, source.ErrNotFound) {
			status = ModelStatusUnavailable
		}
		instance.Fail(status, err)
		return instance
	}
	instance.Path = downloadPath

	if err := m.resolveArtifacts(instance, b); err != nil {
		status := ModelStatusFailed
		if errors.Is(err, ErrArtifactMissing) || errors.Is(err, backend.ErrModelFileNotFound) {
			status = ModelStatusUnavailable
		}
		instance.Fail(status, err)
		return instance
	}

	if instance.Scaler.Dim() != nMFCC {
		instance.Fail(ModelStatusFailed, fmt.Errorf("%w: scaler expects %d features, extractor produces %d", ErrDimensionMismatch, instance.Scaler.Dim(), nMFCC))
		return instance
	}

	instance.SetStatus(ModelStatusLoaded)
	return instance
}

// resolveArtifacts locates and loads the classifier, scaler and label encoder.
func (m *Manager) resolveArtifacts(instance *ModelInstance, b backend.Backend) error {
	dir := instance.Path
	if xfs.FileExists(dir) {
		return fmt.Errorf("%w: model source must be a directory, got file %s", ErrArtifactFormat, dir)
	}

	cfg := instance.Config

	switch {
	case cfg.File != "":
		instance.ModelPath = xfs.Resolve(dir, cfg.File)
		if _, err := os.Stat(instance.ModelPath); err != nil {
			return fmt.Errorf("%w: %s", backend.ErrModelFileNotFound, instance.ModelPath)
		}
	default:
		if locator, ok := b.(backend.ModelLocator); ok {
			path, err := locator.ResolveModelPath(dir)
			if err != nil {
				return err
			}
			instance.ModelPath = path
		} else {
			instance.ModelPath = dir
		}
	}

	scalerPath, err := artifactPath(dir, cfg.Scaler, scalerBaseName)
	if err != nil {
		return err
	}
	if instance.Scaler, err = LoadScaler(scalerPath); err != nil {
		return err
	}

	encoderPath, err := artifactPath(dir, cfg.LabelEncoder, encoderBaseName)
	if err != nil {
		return err
	}
	if instance.Encoder, err = LoadLabelEncoder(encoderPath); err != nil {
		return err
	}

	return nil
}

func artifactPath(dir, configured, baseName string) (string, error) {
	if configured != "" {
		return xfs.Resolve(dir, configured), nil
	}
	if p, ok := findArtifact(dir, baseName); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: no %s.{json,yaml,msgpack} in %s", ErrArtifactMissing, baseName, dir)
}

// release frees backend resources held for an instance.
func (m *Manager) release(instance *ModelInstance) {
	if instance.ModelPath == "" {
		return
	}
	b, ok := m.backends.Get(instance.Provider)
	if !ok {
		return
	}
	if r, ok := b.(backend.Releaser); ok {
		if err := r.Release(instance.ModelPath); err != nil {
			slog.Warn("Failed to release model resources", "model_id", instance.ID, "error", err)
		}
	}
}

// ArtifactDirs returns the directories of loaded local-source instances, for
// watching. Downloaded sources are left out: each load rewrites their files.
func (m *Manager) ArtifactDirs() []string {
	var dirs []string
	for _, instance := range m.registry.List() {
		if instance.Config == nil || instance.Config.Source.Local == nil {
			continue
		}
		if instance.Path != "" && xfs.DirExists(instance.Path) {
			dirs = append(dirs, instance.Path)
		}
	}
	return dirs
}

// ResolveModelsPath returns the path to the models directory.
// Precedence:
// 1. DEEPVOICE_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func ResolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.DeepvoiceModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
