package mapsafe

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	m := map[string]any{
		"int":     7,
		"float":   2.5,
		"int64":   int64(9),
		"number":  json.Number("42"),
		"string":  "name",
		"boolstr": "true",
		"nil":     nil,
	}

	assert.Equal(t, 7, Get(m, "int", 0))
	assert.Equal(t, 2, Get(m, "float", 0))
	assert.Equal(t, 9.0, Get(m, "int64", 0.0))
	assert.Equal(t, int64(42), Get(m, "number", int64(0)))
	assert.Equal(t, float32(2.5), Get(m, "float", float32(0)))
	assert.Equal(t, "42", Get(m, "number", ""))
	assert.Equal(t, "name", Get(m, "string", "default"))
	assert.True(t, Get(m, "boolstr", false))

	assert.Equal(t, "default", Get(m, "int", "default"))
	assert.Equal(t, 3, Get(m, "missing", 3))
	assert.Equal(t, 3, Get(m, "nil", 3))
	assert.Equal(t, 3, Get[int](nil, "int", 3))
}

func TestSeconds(t *testing.T) {
	m := map[string]any{"timeout": 1.5, "whole": 60}

	assert.Equal(t, 1500*time.Millisecond, Seconds(m, "timeout", time.Second))
	assert.Equal(t, time.Minute, Seconds(m, "whole", time.Second))
	assert.Equal(t, time.Second, Seconds(m, "missing", time.Second))
}
