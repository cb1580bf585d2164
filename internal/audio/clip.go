// Package audio decodes uploaded clips into mono float samples.
package audio

import "time"

// Clip is decoded, mono audio normalised to [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
	// Channels is the channel count of the source before down-mixing.
	Channels int
	Format   string
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Float64 returns the samples widened to float64.
func (c *Clip) Float64() []float64 {
	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float64(s)
	}
	return out
}

// Downmix averages interleaved channels into a single channel.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	out := make([]float32, frames)
	scale := 1 / float32(channels)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum * scale
	}
	return out
}
