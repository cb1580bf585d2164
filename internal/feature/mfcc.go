package feature

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// amin floors power before the log so silence does not produce -Inf.
const amin = 1e-10

// Extractor computes MFCC matrices. Filter banks are built lazily per sample
// rate and cached. Safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	dct    [][]float64
	banks  map[int][]melFilter
	mu     sync.Mutex
}

// New creates an Extractor with the given config.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Extractor{
		cfg:    cfg,
		window: hannWindow(cfg.NFFT),
		dct:    dctBasis(cfg.NMFCC, cfg.NMels),
		banks:  make(map[int][]melFilter),
	}, nil
}

// Config returns the extractor's parameters.
func (e *Extractor) Config() Config {
	return e.cfg
}

func (e *Extractor) bank(sampleRate int) []melFilter {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.banks[sampleRate]; ok {
		return b
	}

	fMax := e.cfg.FMax
	if fMax <= 0 {
		fMax = float64(sampleRate) / 2
	}
	b := melFilterBank(e.cfg.NMels, e.cfg.NFFT, sampleRate, e.cfg.FMin, fMax)
	e.banks[sampleRate] = b
	return b
}

// Extract returns the MFCC matrix laid out [NMFCC][frames].
func (e *Extractor) Extract(samples []float64, sampleRate int) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}

	logMel := e.logMelSpectrogram(samples, sampleRate)
	frames := len(logMel)

	mfcc := make([][]float64, e.cfg.NMFCC)
	for k := range mfcc {
		mfcc[k] = make([]float64, frames)
	}

	for t, bands := range logMel {
		for k, basis := range e.dct {
			var sum float64
			for m, v := range bands {
				sum += basis[m] * v
			}
			mfcc[k][t] = sum
		}
	}

	return mfcc, nil
}

// logMelSpectrogram returns [frames][NMels] power in dB, clipped to TopDB below the peak.
func (e *Extractor) logMelSpectrogram(samples []float64, sampleRate int) [][]float64 {
	nfft := e.cfg.NFFT
	hop := e.cfg.HopLength
	filters := e.bank(sampleRate)

	padded := centerPad(samples, nfft/2)
	frames := frameCount(len(samples), hop)

	fft := fourier.NewFFT(nfft)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	power := make([]float64, nfft/2+1)

	out := make([][]float64, frames)
	peak := math.Inf(-1)

	for t := range frames {
		offset := t * hop
		for i := range frame {
			frame[i] = padded[offset+i] * e.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for i, c := range coeffs {
			power[i] = real(c)*real(c) + imag(c)*imag(c)
		}

		bands := make([]float64, len(filters))
		for m, f := range filters {
			db := 10 * math.Log10(math.Max(amin, f.apply(power)))
			bands[m] = db
			if db > peak {
				peak = db
			}
		}
		out[t] = bands
	}

	if e.cfg.TopDB > 0 {
		floor := peak - e.cfg.TopDB
		for _, bands := range out {
			for m, v := range bands {
				if v < floor {
					bands[m] = floor
				}
			}
		}
	}

	return out
}

// Means averages each coefficient over time.
func Means(mfcc [][]float64) []float64 {
	out := make([]float64, len(mfcc))
	for k, row := range mfcc {
		if len(row) == 0 {
			continue
		}
		out[k] = stat.Mean(row, nil)
	}
	return out
}

// MeanVector extracts MFCCs and returns the per-coefficient means. The result
// always has exactly NMFCC values or ErrCoefficientCount is returned.
func (e *Extractor) MeanVector(samples []float64, sampleRate int) ([]float64, error) {
	mfcc, err := e.Extract(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	means := Means(mfcc)
	if len(means) != e.cfg.NMFCC {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCoefficientCount, len(means), e.cfg.NMFCC)
	}
	for _, v := range means {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", ErrCoefficientCount)
		}
	}
	return means, nil
}
