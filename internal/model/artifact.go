package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.yaml.in/yaml/v3"
)

// Scaler standardises features as (x - mean) / scale, mirroring a fitted
// scikit-learn StandardScaler exported to JSON, YAML or msgpack. Other
// exported attributes such as var_ and n_features_in_ are ignored.
type Scaler struct {
	Mean  []float64 `json:"mean"  yaml:"mean"  msgpack:"mean"`
	Scale []float64 `json:"scale" yaml:"scale" msgpack:"scale"`
}

// Dim returns the number of features the scaler was fitted on.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Validate checks that mean and scale agree and are finite.
func (s *Scaler) Validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("%w: scaler mean has %d values, scale has %d", ErrDimensionMismatch, len(s.Mean), len(s.Scale))
	}
	for i := range s.Mean {
		if math.IsNaN(s.Mean[i]) || math.IsNaN(s.Scale[i]) {
			return fmt.Errorf("%w: scaler has NaN at %d", ErrArtifactFormat, i)
		}
	}
	return nil
}

// Transform standardises x. A zero scale is treated as 1.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d features, scaler expects %d", ErrDimensionMismatch, len(x), len(s.Mean))
	}

	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// LabelEncoder maps class indices back to labels, like a fitted
// scikit-learn LabelEncoder.
type LabelEncoder struct {
	Classes []string `json:"classes" yaml:"classes" msgpack:"classes"`
}

// DefaultLabelEncoder returns the sorted classes the detector was trained on.
func DefaultLabelEncoder() *LabelEncoder {
	return &LabelEncoder{Classes: []string{"Deepfake", "Real"}}
}

// InverseTransform returns the label for class index i.
func (e *LabelEncoder) InverseTransform(i int) (string, error) {
	if i < 0 || i >= len(e.Classes) {
		return "", fmt.Errorf("%w: %d of %d", ErrUnknownClass, i, len(e.Classes))
	}
	return e.Classes[i], nil
}

// LoadScaler reads a scaler file; the codec is chosen by extension.
func LoadScaler(path string) (*Scaler, error) {
	var s Scaler
	if err := decodeArtifact(path, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// LoadLabelEncoder reads a label encoder file; the codec is chosen by extension.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	var e LabelEncoder
	if err := decodeArtifact(path, &e); err != nil {
		return nil, err
	}
	if len(e.Classes) < 2 {
		return nil, fmt.Errorf("%w: %s has %d classes", ErrArtifactFormat, path, len(e.Classes))
	}
	return &e, nil
}

// artifactExtensions lists the supported codecs, in lookup order.
var artifactExtensions = []string{".json", ".yaml", ".yml", ".msgpack", ".mp"}

func decodeArtifact(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".msgpack", ".mp":
		err = msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrArtifactFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrArtifactFormat, path, err)
	}
	return nil
}

// findArtifact returns dir/<name><ext> for the first supported extension that exists.
func findArtifact(dir, name string) (string, bool) {
	for _, ext := range artifactExtensions {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
