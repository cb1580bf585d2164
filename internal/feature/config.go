// Package feature computes MFCC features compatible with librosa's defaults.
//
// Default parameters:
//
//	NMFCC:     26
//	NFFT:      2048
//	HopLength: 512
//	NMels:     128 (Slaney scale, Slaney area normalisation)
//	FMin:      0
//	FMax:      sr/2 (when zero)
//	TopDB:     80
//
// Frames are centred: the signal is zero-padded by NFFT/2 on both sides and
// windowed with a periodic Hann window.
package feature

import (
	"fmt"

	"github.com/ekisa-team/deepvoice/internal/config"
)

// Config controls MFCC extraction.
type Config struct {
	NMFCC     int     // number of cepstral coefficients kept
	NFFT      int     // FFT and window length in samples
	HopLength int     // hop between frames in samples
	NMels     int     // number of mel bands
	FMin      float64 // lowest mel band edge in Hz
	FMax      float64 // highest mel band edge in Hz, sr/2 when zero
	TopDB     float64 // dynamic range floor below the peak, disabled when negative
}

// DefaultConfig returns librosa's MFCC defaults with 26 coefficients.
func DefaultConfig() Config {
	return Config{
		NMFCC:     26,
		NFFT:      2048,
		HopLength: 512,
		NMels:     128,
		TopDB:     80,
	}
}

// FromConfig maps the application config, falling back to defaults for zero values.
func FromConfig(c config.FeatureConfig) Config {
	cfg := DefaultConfig()
	if c.NMFCC > 0 {
		cfg.NMFCC = c.NMFCC
	}
	if c.NFFT > 0 {
		cfg.NFFT = c.NFFT
	}
	if c.HopLength > 0 {
		cfg.HopLength = c.HopLength
	}
	if c.NMels > 0 {
		cfg.NMels = c.NMels
	}
	if c.TopDB > 0 {
		cfg.TopDB = c.TopDB
	}
	cfg.FMin = c.FMin
	cfg.FMax = c.FMax
	return cfg
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	switch {
	case c.NMFCC <= 0:
		return fmt.Errorf("%w: n_mfcc must be positive", ErrInvalidConfig)
	case c.NMels < c.NMFCC:
		return fmt.Errorf("%w: n_mels (%d) must be >= n_mfcc (%d)", ErrInvalidConfig, c.NMels, c.NMFCC)
	case c.NFFT < 2 || c.NFFT%2 != 0:
		return fmt.Errorf("%w: n_fft must be even and >= 2", ErrInvalidConfig)
	case c.HopLength <= 0:
		return fmt.Errorf("%w: hop_length must be positive", ErrInvalidConfig)
	case c.FMin < 0 || (c.FMax > 0 && c.FMax <= c.FMin):
		return fmt.Errorf("%w: invalid frequency range [%g, %g]", ErrInvalidConfig, c.FMin, c.FMax)
	}
	return nil
}
