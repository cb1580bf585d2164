package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts a clip to the target rate. A zero target, or one equal to
// the clip's rate, returns the clip unchanged.
func Resample(c *Clip, target int) (*Clip, error) {
	if target <= 0 || target == c.SampleRate {
		return c, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(c.SampleRate),
		OutputRate: float64(target),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(c.Float64())
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyAudio
	}

	samples := make([]float32, len(out))
	for i, v := range out {
		samples[i] = float32(v)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: target,
		Channels:   c.Channels,
		Format:     c.Format,
	}, nil
}
