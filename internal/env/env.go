package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/deepvoice/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	// Development enables colored console logs at debug level.
	Development Environment = "development"

	// Production emits JSON logs at info level.
	Production Environment = "production"

	// Test is used by tests and quiet tooling.
	Test Environment = "test"
)

// FromEnv reads the environment from DEEPVOICE_ENV, defaulting to development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.DeepvoiceEnv))
}

// Parse converts a string into an Environment. Unknown values map to development.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
