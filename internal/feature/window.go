package feature

import "math"

// hannWindow returns a periodic Hann window, the form used for spectral analysis.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// centerPad zero-pads pad samples on both sides.
func centerPad(samples []float64, pad int) []float64 {
	out := make([]float64, len(samples)+2*pad)
	copy(out[pad:], samples)
	return out
}

// frameCount returns the number of centred frames for n samples.
func frameCount(n, hop int) int {
	return 1 + n/hop
}
