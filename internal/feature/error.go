package feature

import "errors"

// Error definitions for the feature package.
var (
	ErrInvalidConfig    = errors.New("invalid feature configuration")
	ErrNoSamples        = errors.New("no samples to analyse")
	ErrCoefficientCount = errors.New("unexpected number of coefficients")
)
