// Package onnx runs exported classifiers through ONNX Runtime.
package onnx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/envvar"
)

// ResolveModelPath returns basePath when it is an .onnx file, otherwise the
// first .onnx file found directly inside it.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	return resolveModelPath(basePath)
}

func resolveModelPath(basePath string) (string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", backend.ErrModelFileNotFound, basePath)
	}
	if !info.IsDir() {
		return basePath, nil
	}

	matches, err := filepath.Glob(filepath.Join(basePath, "*.onnx"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("%w: no .onnx file in %s", backend.ErrModelFileNotFound, basePath)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// findLibrary looks for the ONNX Runtime shared library: explicit path,
// ONNXRUNTIME_LIB, then common install locations.
func findLibrary(explicit string) string {
	paths := []string{
		explicit,
		os.Getenv(envvar.OnnxRuntimeLib),
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}

	if ld := os.Getenv("LD_LIBRARY_PATH"); ld != "" {
		for _, dir := range strings.Split(ld, string(os.PathListSeparator)) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.so"))
		}
	}
	if runtime.GOOS == "windows" {
		paths = append(paths, "onnxruntime.dll")
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
