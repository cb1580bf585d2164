package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound           = errors.New("backend not found in registry")
	ErrAlreadyRegistered  = errors.New("backend is already registered in the registry")
	ErrRuntimeUnavailable = errors.New("backend runtime is not available in this build")
	ErrInvalidInput       = errors.New("input does not match tensor shape")
	ErrEmptyOutput        = errors.New("backend returned no output")
	ErrModelFileNotFound  = errors.New("model file not found")
)
