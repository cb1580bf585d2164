// Package mapsafe reads typed values out of loosely typed parameter maps, such
// as the per-model backend parameters decoded from YAML or JSON.
package mapsafe

import (
	"encoding/json"
	"strconv"
	"time"
)

// Get returns m[key] converted to T, or def when the key is missing or the
// value cannot be converted. Numeric values convert between int, int64,
// float32, float64 and json.Number.
func Get[T any](m map[string]any, key string, def T) T {
	val, ok := m[key]
	if !ok || val == nil {
		return def
	}
	if v, ok := val.(T); ok {
		return v
	}

	var out any
	switch any(def).(type) {
	case int:
		if f, ok := number(val); ok {
			out = int(f)
		}
	case int64:
		if f, ok := number(val); ok {
			out = int64(f)
		}
	case float64:
		if f, ok := number(val); ok {
			out = f
		}
	case float32:
		if f, ok := number(val); ok {
			out = float32(f)
		}
	case string:
		if n, ok := val.(json.Number); ok {
			out = n.String()
		}
	case bool:
		if s, ok := val.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				out = b
			}
		}
	}

	if v, ok := out.(T); ok {
		return v
	}
	return def
}

// Seconds reads a number of seconds as a time.Duration.
func Seconds(m map[string]any, key string, def time.Duration) time.Duration {
	s := Get(m, key, def.Seconds())
	return time.Duration(s * float64(time.Second))
}

func number(val any) (float64, bool) {
	switch x := val.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
