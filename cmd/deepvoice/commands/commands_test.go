package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/audio/audiotest"
	"github.com/ekisa-team/deepvoice/internal/envvar"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(envvar.DeepvoiceModelsPath, filepath.Join(dir, "models"))

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "missing.yaml"), "--env-file", filepath.Join(dir, ".env")}, args...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeWAV(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, os.WriteFile(path, audiotest.WAV(t, audiotest.Sine(440, 16000, 1), 16000, 1), 0o644))
	return path
}

func TestFeaturesCommand(t *testing.T) {
	out, err := run(t, "features", writeWAV(t))
	require.NoError(t, err)

	var features []float64
	require.NoError(t, json.Unmarshal([]byte(out), &features))
	assert.Len(t, features, 26)
}

func TestClassifyCommand(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o644))

	out, err := run(t, "classify", writeWAV(t), bad)
	assert.EqualError(t, err, "1 of 2 files failed")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var ok, failed map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))

	assert.Contains(t, []any{"Real", "Deepfake"}, ok["label"])
	assert.NotContains(t, ok, "error")
	assert.Equal(t, "File type not supported. Please upload MP3, WAV, or OGG.", failed["error"])
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "deepvoice "+Version)
}
