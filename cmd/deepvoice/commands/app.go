package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/backend/mock"
	"github.com/ekisa-team/deepvoice/internal/backend/onnx"
	"github.com/ekisa-team/deepvoice/internal/backend/tfserving"
	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/envvar"
	"github.com/ekisa-team/deepvoice/internal/model"
	"github.com/ekisa-team/deepvoice/internal/service"
)

const tfServingBinary = "tensorflow_model_server"

// app holds the wiring shared by every command.
type app struct {
	backends *backend.Registry
	servers  *backend.ServerManager
	manager  *model.Manager
	detector *service.Detector
}

// newApp registers the backends, loads the configured models and builds the
// detector. Model load failures are logged; the detector falls back to mock.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		backends: backend.NewRegistry(),
		servers:  backend.NewServerManager(),
	}

	if err := a.backends.Register(mock.NewBackend(nil)); err != nil {
		return nil, err
	}

	if b, err := onnx.NewBackend(os.Getenv(envvar.OnnxRuntimeLib)); err != nil {
		slog.Warn("ONNX Runtime backend unavailable", "error", err)
	} else if err := a.backends.Register(b); err != nil {
		return nil, err
	}

	binPath, err := backend.LookupBinary(tfServingBinary)
	if err != nil {
		slog.Debug("TensorFlow Serving binary not found, only remote endpoints will work", "binary", tfServingBinary)
		binPath = ""
	}
	if err := a.backends.Register(tfserving.NewBackend(binPath, a.servers, 0)); err != nil {
		return nil, err
	}

	a.manager = model.NewManager(a.backends)
	if err := a.manager.LoadModelsFromConfig(ctx, cfg); err != nil {
		slog.Error("Failed to load models from config", "error", err)
	}

	a.detector, err = service.NewDetector(a.backends, a.manager.Registry(), cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// reload applies a new config to the models and the detector.
func (a *app) reload(ctx context.Context, cfg *config.Config) {
	if err := a.manager.LoadModelsFromConfig(ctx, cfg); err != nil {
		slog.Error("Failed to load models from config", "error", err)
	}
	if err := a.detector.Reconfigure(cfg); err != nil {
		slog.Error("Failed to apply config to detector", "error", err)
	}
}

// Close releases backends and stops sidecar servers.
func (a *app) Close() {
	if err := a.backends.Close(); err != nil {
		slog.Warn("Failed to close backends", "error", err)
	}
	a.servers.StopAll()
}
