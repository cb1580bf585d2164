package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/service"
)

type classifyLine struct {
	File string `json:"file"`
	*service.Result
	Error string `json:"error,omitempty"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "Classify audio files offline",
	Long: `Classify audio files without starting the server.

One JSON object is printed per file. Files that cannot be classified are
reported with an "error" field and make the command exit non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(false)

		cfg, err := config.LoadOrDefault(resolvedConfigPath(cmd), schemaPath)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		failed := 0
		for _, path := range args {
			line := classifyLine{File: path}
			result, err := classifyFile(cmd, a.detector, path)
			if err != nil {
				line.Error = err.Error()
				failed++
			}
			line.Result = result
			if err := enc.Encode(line); err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func classifyFile(cmd *cobra.Command, detector *service.Detector, path string) (*service.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return detector.Detect(cmd.Context(), filepath.Base(path), f)
}
