package commands

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/env"
	"github.com/ekisa-team/deepvoice/internal/envvar"
	"github.com/ekisa-team/deepvoice/internal/logger"
)

// Set at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

var (
	configPath string
	schemaPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "deepvoice",
	Short: "Deepfake voice detection service",
	Long: `deepvoice - classify speech recordings as genuine or AI-generated.

Audio is decoded, summarised as 26 MFCC means and scored by a pretrained
classifier (ONNX Runtime or TensorFlow Serving). When no model artifacts are
available a random mock result is returned instead.

Examples:
  # Run the API on :5000 and the gRPC health service on :5001
  deepvoice serve

  # Classify files offline
  deepvoice classify sample.wav other.mp3`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigFile(), "path to config file (env "+envvar.DeepvoiceConfig+")")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "path to an external JSON schema; the embedded schema is used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before anything else")

	rootCmd.AddCommand(serveCmd, classifyCmd, featuresCmd, versionCmd)
}

func defaultConfigFile() string {
	if p := os.Getenv(envvar.DeepvoiceConfig); p != "" {
		return p
	}
	return filepath.Join(config.DefaultConfigPath(), "config.yaml")
}

// resolvedConfigPath re-reads DEEPVOICE_CONFIG, which .env may have set after
// flag defaults were computed.
func resolvedConfigPath(cmd *cobra.Command) string {
	if !cmd.Flags().Changed("config") {
		return defaultConfigFile()
	}
	return configPath
}

// setupLogger installs the default logger. Offline commands keep stdout for
// results, so logs always go to stderr.
func setupLogger(toFile bool) {
	opts := []logger.Option{logger.WithOutput(os.Stderr)}
	if toFile {
		opts = append(opts, logger.WithLogToFile(true), logger.WithLogFile(filepath.Join("logs", "deepvoice.log")))
	}
	slog.SetDefault(logger.New(env.FromEnv(), opts...))
}
