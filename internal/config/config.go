package config

import (
	"errors"
	"strings"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeLocal represents artifacts already present on disk.
	SourceTypeLocal SourceType = "local"
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
	// SourceTypeS3 represents an S3 bucket prefix holding the artifacts.
	SourceTypeS3 SourceType = "s3"
)

// FallbackMode controls what the detector does when no model is usable.
type FallbackMode string

const (
	// FallbackMock fabricates a random result.
	FallbackMock FallbackMode = "mock"
	// FallbackError fails the request with a classification error.
	FallbackError FallbackMode = "error"
)

// Config holds the main configuration for the application.
type Config struct {
	Version  string                 `json:"version"            yaml:"version"`
	Server   ServerConfig           `json:"server,omitempty"   yaml:"server,omitempty"`
	Storage  StorageConfig          `json:"storage,omitempty"  yaml:"storage,omitempty"`
	Audio    AudioConfig            `json:"audio,omitempty"    yaml:"audio,omitempty"`
	Features FeatureConfig          `json:"features,omitempty" yaml:"features,omitempty"`
	Models   map[string]ModelConfig `json:"models"             yaml:"models"`
	Services ServicesConfig         `json:"services"           yaml:"services"`
	Tracing  TracingConfig          `json:"tracing,omitempty"  yaml:"tracing,omitempty"`
}

// ServerConfig holds the HTTP and gRPC listener settings.
type ServerConfig struct {
	Host              string   `json:"host,omitempty"               yaml:"host,omitempty"`
	HTTPPort          int      `json:"http_port,omitempty"          yaml:"http_port,omitempty"`
	GRPCPort          int      `json:"grpc_port,omitempty"          yaml:"grpc_port,omitempty"`
	MaxUploadBytes    int64    `json:"max_upload_bytes,omitempty"   yaml:"max_upload_bytes,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty" yaml:"allowed_extensions,omitempty"`
	CORSOrigins       []string `json:"cors_origins,omitempty"       yaml:"cors_origins,omitempty"`
}

// StorageConfig holds configuration for caching and auto-download.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// AudioConfig controls decoding.
type AudioConfig struct {
	// SampleRate resamples decoded audio when non-zero. Zero keeps the native rate.
	SampleRate int    `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	FFmpegPath string `json:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty"`
}

// FeatureConfig holds the MFCC parameters.
type FeatureConfig struct {
	NMFCC     int     `json:"n_mfcc,omitempty"     yaml:"n_mfcc,omitempty"`
	NFFT      int     `json:"n_fft,omitempty"      yaml:"n_fft,omitempty"`
	HopLength int     `json:"hop_length,omitempty" yaml:"hop_length,omitempty"`
	NMels     int     `json:"n_mels,omitempty"     yaml:"n_mels,omitempty"`
	FMin      float64 `json:"fmin,omitempty"       yaml:"fmin,omitempty"`
	FMax      float64 `json:"fmax,omitempty"       yaml:"fmax,omitempty"`
	TopDB     float64 `json:"top_db,omitempty"     yaml:"top_db,omitempty"`
}

// ModelConfig holds configuration for a specific detector model.
type ModelConfig struct {
	Source       SourceConfig   `json:"source"                  yaml:"source"`
	Backend      string         `json:"backend"                 yaml:"backend"`
	File         string         `json:"file,omitempty"          yaml:"file,omitempty"`
	Scaler       string         `json:"scaler,omitempty"        yaml:"scaler,omitempty"`
	LabelEncoder string         `json:"label_encoder,omitempty" yaml:"label_encoder,omitempty"`
	WindowSize   *int           `json:"window_size,omitempty"   yaml:"window_size,omitempty"`
	InputName    string         `json:"input_name,omitempty"    yaml:"input_name,omitempty"`
	OutputName   string         `json:"output_name,omitempty"   yaml:"output_name,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"    yaml:"parameters,omitempty"`
	Tags         []string       `json:"tags,omitempty"          yaml:"tags,omitempty"`
	Order        int            `json:"order,omitempty"         yaml:"order,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
	S3          *S3Source          `json:"s3,omitempty"          yaml:"s3,omitempty"`
}

// ServicesConfig holds configuration for all services.
type ServicesConfig struct {
	Detect DetectServiceConfig `json:"detect" yaml:"detect"`
}

// DetectServiceConfig holds model assignments for the detector.
type DetectServiceConfig struct {
	Models   []string     `json:"models"             yaml:"models"` // List of model IDs
	Fallback FallbackMode `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Exporter     string  `json:"exporter,omitempty"      yaml:"exporter,omitempty"`
	Endpoint     string  `json:"endpoint,omitempty"      yaml:"endpoint,omitempty"`
	SamplingRate float64 `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// LocalSource points at a directory or file already on disk.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// S3Source represents objects stored under a bucket prefix.
type S3Source struct {
	Bucket   string   `json:"bucket"             yaml:"bucket"`
	Prefix   string   `json:"prefix,omitempty"   yaml:"prefix,omitempty"`
	Keys     []string `json:"keys,omitempty"     yaml:"keys,omitempty"`
	Region   string   `json:"region,omitempty"   yaml:"region,omitempty"`
	Endpoint string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Type returns the S3 source type.
func (s S3Source) Type() SourceType {
	return SourceTypeS3
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	switch {
	case m.Source.Local != nil:
		return *m.Source.Local, nil
	case m.Source.HuggingFace != nil:
		return *m.Source.HuggingFace, nil
	case m.Source.S3 != nil:
		return *m.Source.S3, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source = SourceConfig{HuggingFace: &source}
}

// SetLocalSource sets the local source.
func (m *ModelConfig) SetLocalSource(source LocalSource) {
	m.Source = SourceConfig{Local: &source}
}

// Window returns the sliding window width, DefaultWindowSize when unset.
func (m *ModelConfig) Window() int {
	if m.WindowSize == nil {
		return DefaultWindowSize
	}
	return *m.WindowSize
}

// IsExtensionAllowed reports whether ext (with or without the dot) is accepted for upload.
func (s ServerConfig) IsExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	for _, allowed := range s.AllowedExtensions {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}
