package commands

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/model"
	"github.com/ekisa-team/deepvoice/internal/service"
)

var featuresCmd = &cobra.Command{
	Use:   "features FILE",
	Short: "Print the MFCC mean vector of an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(false)

		cfg, err := config.LoadOrDefault(resolvedConfigPath(cmd), schemaPath)
		if err != nil {
			return err
		}

		// Features never touch a classifier, so no models are loaded.
		detector, err := service.NewDetector(backend.NewRegistry(), model.NewRegistry(), cfg)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		features, err := detector.Features(cmd.Context(), filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(features)
	},
}
