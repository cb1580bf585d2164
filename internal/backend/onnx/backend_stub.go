//go:build !cgo

package onnx

import (
	"context"

	"github.com/ekisa-team/deepvoice/internal/backend"
)

// Backend is unavailable without cgo.
type Backend struct{}

// NewBackend always fails in builds without cgo.
func NewBackend(string) (*Backend, error) {
	return nil, backend.ErrRuntimeUnavailable
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderONNXRuntime
}

// Infer always fails in builds without cgo.
func (b *Backend) Infer(context.Context, *backend.Request) (*backend.Response, error) {
	return nil, backend.ErrRuntimeUnavailable
}

// Release is a no-op.
func (b *Backend) Release(string) error {
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}
