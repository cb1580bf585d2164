package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE

	// WAVE_FORMAT_EXTENSIBLE fmt chunk: the SubFormat GUID starts at byte 24
	// and its first two bytes carry the effective format tag.
	extensibleSubFormatOffset = 24
)

// WAVDecoder decodes integer PCM and IEEE float WAV files, including their
// WAVE_FORMAT_EXTENSIBLE variants.
type WAVDecoder struct{}

// Decode implements Decoder.
func (WAVDecoder) Decode(data []byte) (*Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}

	format := d.WavAudioFormat
	if format == wavFormatExtensible {
		sub, err := wavSubFormat(data)
		if err != nil {
			return nil, err
		}
		format = sub
	}

	var (
		samples []float32
		err     error
	)
	switch format {
	case wavFormatPCM:
		samples, err = decodeIntPCM(d)
	case wavFormatIEEEFloat:
		samples, err = decodeFloatPCM(d)
	default:
		return nil, fmt.Errorf("%w: WAV encoding %#04x", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	channels := int(d.NumChans)
	return &Clip{
		Samples:    Downmix(samples, channels),
		SampleRate: int(d.SampleRate),
		Channels:   channels,
		Format:     "wav",
	}, nil
}

// wavSubFormat returns the format tag carried by an extensible fmt chunk.
func wavSubFormat(data []byte) (uint16, error) {
	p := riff.New(bytes.NewReader(data))
	if err := p.ParseHeaders(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("%w: fmt chunk not found", ErrDecode)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}

		hdr := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, hdr); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if len(hdr) < extensibleSubFormatOffset+2 {
			return 0, fmt.Errorf("%w: extensible fmt chunk is %d bytes", ErrDecode, len(hdr))
		}
		return binary.LittleEndian.Uint16(hdr[extensibleSubFormatOffset:]), nil
	}
}

func decodeIntPCM(d *wav.Decoder) ([]float32, error) {
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, ErrEmptyAudio
	}
	return normalizeInts(buf, int(d.BitDepth))
}

// decodeFloatPCM reads 32 or 64-bit little-endian IEEE float samples.
func decodeFloatPCM(d *wav.Decoder) ([]float32, error) {
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if d.PCMChunk == nil {
		return nil, fmt.Errorf("%w: data chunk not found", ErrDecode)
	}

	raw, err := io.ReadAll(io.LimitReader(d.PCMChunk, int64(d.PCMSize)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var out []float32
	switch d.BitDepth {
	case 32:
		out = make([]float32, len(raw)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case 64:
		out = make([]float32, len(raw)/8)
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit float WAV", ErrUnsupportedFormat, d.BitDepth)
	}
	if len(out) == 0 {
		return nil, ErrEmptyAudio
	}
	return out, nil
}

// normalizeInts scales integer PCM into [-1, 1]. 8-bit WAV is unsigned.
func normalizeInts(buf *goaudio.IntBuffer, bitDepth int) ([]float32, error) {
	out := make([]float32, len(buf.Data))

	switch bitDepth {
	case 8:
		for i, v := range buf.Data {
			out[i] = float32(v-128) / 128
		}
	case 16, 24, 32:
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			out[i] = float32(v) / scale
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}

	return out, nil
}
