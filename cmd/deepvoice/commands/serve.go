package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/env"
	grpcserver "github.com/ekisa-team/deepvoice/internal/server/grpc"
	httpserver "github.com/ekisa-team/deepvoice/internal/server/http"
	"github.com/ekisa-team/deepvoice/internal/trace"
)

const shutdownTimeout = 15 * time.Second

var (
	httpPort int
	grpcPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection API",
	Long: `Run the HTTP detection API and the gRPC health service.

The config file and the local model artifact directories are watched; changes
reload the models without restarting. A missing config file is not an error:
built-in defaults are used and the mock classifier answers requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP port to listen on (default from config, then 5000)")
	serveCmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "gRPC port to listen on (default from config, then 5001)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogger(true)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := resolvedConfigPath(cmd)

	// The watcher callback runs on the watcher goroutine; only the newest
	// pending config is kept.
	reloads := make(chan *config.Config, 1)
	watcher, err := config.NewWatcher(path, schemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}
		select {
		case <-reloads:
		default:
		}
		reloads <- cfg
	})
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()
	if cmd.Flags().Changed("http-port") {
		cfg.Server.HTTPPort = httpPort
	}
	if cmd.Flags().Changed("grpc-port") {
		cfg.Server.GRPCPort = grpcPort
	}
	slog.Info("Config loaded successfully", "config", path, "schema", schemaPath, "models", len(cfg.Models))

	if err := trace.Initialize(ctx, trace.FromConfig(cfg.Tracing, Version, string(env.FromEnv()))); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down tracing", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	watchArtifacts(watcher, a)

	handler, _ := httpserver.NewRouter(a.detector, httpserver.RouterOptions{
		Version:        Version,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	health := grpcserver.NewHealthServer(a.detector)
	grpcLis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr, "mock", a.detector.MockActive())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := health.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutting down")
			break loop
		case err := <-errCh:
			runErr = err
			break loop
		case cfg := <-reloads:
			slog.Info("Config changed, reloading models", "reloads", watcher.ReloadCount())
			a.reload(ctx, cfg)
			health.Refresh()
			watchArtifacts(watcher, a)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown failed", "error", err)
	}
	health.Stop()

	return runErr
}

func watchArtifacts(watcher *config.Watcher, a *app) {
	for _, dir := range a.manager.ArtifactDirs() {
		if err := watcher.WatchPath(dir); err != nil {
			slog.Warn("Failed to watch model artifacts", "path", dir, "error", err)
		}
	}
}
