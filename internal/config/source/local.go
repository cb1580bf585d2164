package source

import (
	"context"
	"fmt"
	"os"

	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/xfs"
)

// LocalDownloader resolves artifacts that already live on disk.
// Relative paths are resolved against the models directory.
type LocalDownloader struct{}

// Download checks that the configured path exists and returns it.
func (d *LocalDownloader) Download(_ context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	local, ok := source.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	path := xfs.Resolve(targetDir, xfs.ExpandTilde(local.Path))
	if _, err := os.Stat(path); err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return path, true, nil
}
