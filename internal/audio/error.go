package audio

import "errors"

// Error definitions for the audio package.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("audio contains no samples")
	ErrDecode            = errors.New("failed to decode audio")
)
