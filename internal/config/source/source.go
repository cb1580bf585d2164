// Package source fetches detector model artifacts into the local models directory.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ekisa-team/deepvoice/internal/config"
)

// Error definitions for the source package.
var (
	ErrUnsupportedSource = errors.New("unsupported model source")
	ErrNotFound          = errors.New("model artifacts not found")
	ErrUnsafeKey         = errors.New("object key escapes the download directory")
)

// Downloader makes a model's artifacts available on the local filesystem.
type Downloader interface {
	// Download returns the local directory holding the artifacts and whether
	// they were already present.
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for the given source type.
func GetDownloader(_ context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeLocal:
		return &LocalDownloader{}, nil
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	case config.SourceTypeS3:
		return NewS3Downloader(nil), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, sourceType)
}

// EnsureModelsDirectory creates the models directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}
