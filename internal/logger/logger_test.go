package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/env"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithOutput(&buf))

	log.Debug("Hidden")
	log.Info("Model loaded", "model_id", "lstm-mfcc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Model loaded", record["msg"])
	assert.Equal(t, "lstm-mfcc", record["model_id"])
}

func TestNew_DevelopmentUsesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Development, WithOutput(&buf))

	log.Debug("Decoding audio", "ext", ".wav")
	assert.Contains(t, buf.String(), "Decoding audio")
}

func TestNew_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Development, WithOutput(&buf), WithLevel(slog.LevelError))

	log.Warn("Dropped")
	assert.Empty(t, buf.String())
}

func TestNew_LogToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "deepvoice.log")

	log := New(env.Development, WithOutput(&buf), WithLogToFile(true), WithLogFile(path))
	log.With("component", "test").Info("Written twice")

	assert.Contains(t, buf.String(), "Written twice")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}
