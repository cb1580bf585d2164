package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/envvar"
)

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()

	_, err := resolveModelPath(dir)
	assert.ErrorIs(t, err, backend.ErrModelFileNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.onnx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.onnx"), []byte("x"), 0o644))

	path, err := resolveModelPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.onnx"), path)

	path, err = resolveModelPath(filepath.Join(dir, "b.onnx"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.onnx"), path)

	_, err = resolveModelPath(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, backend.ErrModelFileNotFound)
}

func TestFindLibrary_Env(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, nil, 0o644))

	t.Setenv(envvar.OnnxRuntimeLib, lib)
	assert.Equal(t, lib, findLibrary(""))

	explicit := filepath.Join(t.TempDir(), "custom.so")
	require.NoError(t, os.WriteFile(explicit, nil, 0o644))
	assert.Equal(t, explicit, findLibrary(explicit))
}
