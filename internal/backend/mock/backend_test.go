package mock

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/backend"
)

func TestBackend_ScoreRange(t *testing.T) {
	b := NewBackend(rand.NewPCG(1, 2))
	assert.Equal(t, backend.BackendProviderMock, b.Provider())

	seen := map[bool]bool{}
	for range 500 {
		resp, err := b.Infer(context.Background(), &backend.Request{})
		require.NoError(t, err)
		require.Len(t, resp.Output, 1)

		p := float64(resp.Output[0])
		high := p >= 0.5
		seen[high] = true

		confidence := p
		if !high {
			confidence = 1 - p
		}
		assert.GreaterOrEqual(t, confidence, MinConfidence-1e-6)
		assert.LessOrEqual(t, confidence, MaxConfidence+1e-6)
		assert.Equal(t, true, resp.Metadata.BackendSpecific["mock"])
	}

	// Both classes show up over many draws.
	assert.True(t, seen[true])
	assert.True(t, seen[false])
	assert.NoError(t, b.Close())
}

func TestBackend_Deterministic(t *testing.T) {
	a := NewBackend(rand.NewPCG(7, 7))
	b := NewBackend(rand.NewPCG(7, 7))

	ra, err := a.Infer(context.Background(), &backend.Request{})
	require.NoError(t, err)
	rb, err := b.Infer(context.Background(), &backend.Request{})
	require.NoError(t, err)

	assert.Equal(t, ra.Output, rb.Output)
}
