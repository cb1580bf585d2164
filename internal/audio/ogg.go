package audio

import (
	"bytes"
	"fmt"

	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder decodes Ogg Vorbis.
type OggDecoder struct{}

// Decode implements Decoder.
func (OggDecoder) Decode(data []byte) (*Clip, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if format == nil || len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	return &Clip{
		Samples:    Downmix(samples, format.Channels),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Format:     "ogg",
	}, nil
}
