package feature

import "math"

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(f float64) float64 {
	if f >= melMinLogHz {
		return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
	}
	return f / melFSp
}

func melToHz(m float64) float64 {
	if m >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
	}
	return melFSp * m
}

// melFilter is one triangular band, stored as its non-zero span of FFT bins.
type melFilter struct {
	start   int
	weights []float64
}

// melFilterBank builds nMels Slaney-normalised triangular filters over the
// nFFT/2+1 bins of a real FFT.
func melFilterBank(nMels, nFFT, sampleRate int, fMin, fMax float64) []melFilter {
	bins := nFFT/2 + 1

	fftFreqs := make([]float64, bins)
	for i := range fftFreqs {
		fftFreqs[i] = float64(i) * float64(sampleRate) / float64(nFFT)
	}

	lo, hi := hzToMel(fMin), hzToMel(fMax)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	filters := make([]melFilter, nMels)
	for m := range nMels {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		enorm := 2 / (right - left)

		start, end := -1, -1
		row := make([]float64, bins)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Max(0, math.Min(lower, upper)) * enorm
			if w > 0 {
				if start < 0 {
					start = k
				}
				end = k
			}
			row[k] = w
		}

		if start < 0 {
			filters[m] = melFilter{}
			continue
		}
		filters[m] = melFilter{start: start, weights: row[start : end+1]}
	}

	return filters
}

// apply projects a power spectrum onto the filter.
func (f melFilter) apply(power []float64) float64 {
	var sum float64
	for i, w := range f.weights {
		sum += w * power[f.start+i]
	}
	return sum
}
