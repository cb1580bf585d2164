package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 Layer III. go-mp3 always emits 16-bit stereo.
type MP3Decoder struct{}

// Decode implements Decoder.
func (MP3Decoder) Decode(data []byte) (*Clip, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(pcm) < 4 {
		return nil, ErrEmptyAudio
	}

	const channels = 2
	n := len(pcm) / 2
	interleaved := make([]float32, n)
	for i := range n {
		interleaved[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}

	return &Clip{
		Samples:    Downmix(interleaved, channels),
		SampleRate: d.SampleRate(),
		Channels:   channels,
		Format:     "mp3",
	}, nil
}
