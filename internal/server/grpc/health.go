// Package grpc serves the standard gRPC health protocol for the detector.
package grpc

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Health service names.
const (
	// ServiceDetector is SERVING whenever the process accepts uploads.
	ServiceDetector = "deepvoice.v1.Detector"
	// ServiceClassifier is SERVING only while a real model is loaded.
	ServiceClassifier = "deepvoice.v1.Classifier"
)

// Readiness reports whether a real classifier is loaded.
type Readiness interface {
	Ready() bool
}

// HealthServer wraps a gRPC server exposing grpc.health.v1.Health.
type HealthServer struct {
	server    *grpc.Server
	health    *health.Server
	readiness Readiness
}

// NewHealthServer creates a HealthServer and publishes the initial statuses.
func NewHealthServer(readiness Readiness, opts ...grpc.ServerOption) *HealthServer {
	s := &HealthServer{
		server:    grpc.NewServer(opts...),
		health:    health.NewServer(),
		readiness: readiness,
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.Refresh()

	return s
}

// Refresh re-evaluates readiness. Call it after models are reloaded.
func (s *HealthServer) Refresh() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceDetector, healthpb.HealthCheckResponse_SERVING)

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.readiness.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceClassifier, status)

	slog.Debug("gRPC health updated", "service", ServiceClassifier, "status", status.String())
}

// Serve accepts connections on lis until Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains connections.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
