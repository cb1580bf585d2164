package model

import "errors"

// Error definitions for the model package.
var (
	ErrNotFound          = errors.New("model not found in registry")
	ErrArtifactMissing   = errors.New("model artifact missing")
	ErrArtifactFormat    = errors.New("unsupported artifact format")
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	ErrUnknownClass      = errors.New("class index out of range")
	ErrNoUsableModel     = errors.New("no usable detector model")
)
