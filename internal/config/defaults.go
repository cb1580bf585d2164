package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/ekisa-team/deepvoice/internal/envvar"
)

const (
	// DefaultWindowSize is the width of the sliding windows fed to the classifier.
	DefaultWindowSize = 5
	// DefaultMaxUploadBytes caps the multipart body.
	DefaultMaxUploadBytes int64 = 10 << 20
)

// DefaultConfigPath returns the default path for DEEPVOICE config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "deepvoice", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "deepvoice")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "deepvoice")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "deepvoice")
		}
		return filepath.Join(home, ".config", "deepvoice")
	}
}

// DefaultModelsPath returns the default path for DEEPVOICE models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "deepvoice", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "deepvoice", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "deepvoice", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "deepvoice", "models")
		}
		return filepath.Join(home, ".cache", "deepvoice", "models")
	}
}

// DefaultHTTPPort returns the HTTP port, honouring DEEPVOICE_SERVER_HTTP_PORT.
func DefaultHTTPPort() int {
	return portFromEnv(envvar.DeepvoiceServerHTTPPort, 5000)
}

// DefaultGRPCPort returns the gRPC health port, honouring DEEPVOICE_SERVER_GRPC_PORT.
func DefaultGRPCPort() int {
	return portFromEnv(envvar.DeepvoiceServerGRPCPort, 5001)
}

func portFromEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			return p
		}
	}
	return fallback
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Version: "1",
		Models:  map[string]ModelConfig{},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero-valued field with its built-in default.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort()
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = DefaultGRPCPort()
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(c.Server.AllowedExtensions) == 0 {
		c.Server.AllowedExtensions = []string{"mp3", "wav", "ogg"}
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Features.NMFCC == 0 {
		c.Features.NMFCC = 26
	}
	if c.Features.NFFT == 0 {
		c.Features.NFFT = 2048
	}
	if c.Features.HopLength == 0 {
		c.Features.HopLength = 512
	}
	if c.Features.NMels == 0 {
		c.Features.NMels = 128
	}
	if c.Features.TopDB == 0 {
		c.Features.TopDB = 80
	}

	if c.Services.Detect.Fallback == "" {
		c.Services.Detect.Fallback = FallbackMock
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1
	}

	if c.Models == nil {
		c.Models = map[string]ModelConfig{}
	}
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if os.Getenv(envvar.DeepvoiceServerHTTPPort) != "" {
		c.Server.HTTPPort = DefaultHTTPPort()
	}
	if os.Getenv(envvar.DeepvoiceServerGRPCPort) != "" {
		c.Server.GRPCPort = DefaultGRPCPort()
	}
	if p := os.Getenv(envvar.DeepvoiceModelsPath); p != "" {
		c.Storage.ModelsDir = p
	}
}
