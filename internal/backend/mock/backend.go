// Package mock provides a backend that fabricates classifier scores. It stands
// in for a real model when artifacts are missing.
package mock

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ekisa-team/deepvoice/internal/backend"
)

const (
	// MinConfidence and MaxConfidence bound the fabricated confidence.
	MinConfidence = 0.65
	MaxConfidence = 0.98
)

// Backend returns a random score: a uniformly random class with a confidence
// drawn uniformly from [MinConfidence, MaxConfidence].
type Backend struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewBackend creates a mock backend. A nil source seeds from the runtime.
func NewBackend(src rand.Source) *Backend {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Backend{rng: rand.New(src)}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderMock
}

// Infer ignores the input and returns the probability of class index 1.
func (b *Backend) Infer(_ context.Context, req *backend.Request) (*backend.Response, error) {
	b.mu.Lock()
	class := b.rng.IntN(2)
	confidence := MinConfidence + b.rng.Float64()*(MaxConfidence-MinConfidence)
	b.mu.Unlock()

	score := confidence
	if class == 0 {
		score = 1 - confidence
	}

	return &backend.Response{
		Output: []float32{float32(score)},
		Metadata: &backend.ResponseMetadata{
			Provider:  b.Provider(),
			Model:     req.ModelPath,
			Timestamp: time.Now(),
			BackendSpecific: map[string]any{
				"mock": true,
			},
		},
	}, nil
}

// Close cleans up resources. The mock backend has none.
func (b *Backend) Close() error {
	return nil
}
