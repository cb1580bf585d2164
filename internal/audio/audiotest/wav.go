// Package audiotest builds in-memory audio fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sine returns seconds of a sine tone at freq Hz, amplitude 0.5.
func Sine(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// WAV encodes samples in [-1, 1] as 16-bit PCM with the given channel count.
// Each sample is duplicated across channels.
func WAV(t testing.TB, samples []float64, sampleRate, channels int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		v := int(math.Round(s * 32767))
		for range channels {
			data = append(data, v)
		}
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return out
}

// WAV format tags used by RawWAV.
const (
	FormatPCM        = 0x0001
	FormatIEEEFloat  = 0x0003
	FormatExtensible = 0xFFFE
)

// RawWAV describes a mono WAV container written byte by byte, for encodings
// the go-audio encoder cannot produce.
type RawWAV struct {
	SampleRate int
	BitDepth   int
	// Format is the fmt chunk tag. With FormatExtensible, SubFormat is
	// written as the first two bytes of the SubFormat GUID.
	Format    uint16
	SubFormat uint16
}

// FloatWAV encodes samples as mono IEEE float WAV at 32 or 64 bits.
func FloatWAV(samples []float64, sampleRate, bitDepth int) []byte {
	return RawWAV{SampleRate: sampleRate, BitDepth: bitDepth, Format: FormatIEEEFloat}.Encode(samples)
}

// Encode writes samples in the layout implied by the fmt fields. Float
// encodings are chosen by the effective format, integer ones are 16-bit PCM.
func (w RawWAV) Encode(samples []float64) []byte {
	effective := w.Format
	if effective == FormatExtensible {
		effective = w.SubFormat
	}

	data := &bytes.Buffer{}
	for _, s := range samples {
		switch {
		case effective == FormatIEEEFloat && w.BitDepth == 64:
			_ = binary.Write(data, binary.LittleEndian, s)
		case effective == FormatIEEEFloat:
			_ = binary.Write(data, binary.LittleEndian, float32(s))
		case w.BitDepth == 32:
			_ = binary.Write(data, binary.LittleEndian, int32(math.Round(s*math.MaxInt32)))
		default:
			_ = binary.Write(data, binary.LittleEndian, int16(math.Round(s*32767)))
		}
	}

	blockAlign := w.BitDepth / 8
	fmtChunk := &bytes.Buffer{}
	fields := []any{
		w.Format,
		uint16(1),
		uint32(w.SampleRate),
		uint32(w.SampleRate * blockAlign),
		uint16(blockAlign),
		uint16(w.BitDepth),
	}
	if w.Format == FormatExtensible {
		// cbSize, valid bits, channel mask (front centre), SubFormat GUID.
		fields = append(fields, uint16(22), uint16(w.BitDepth), uint32(0x4), w.SubFormat,
			[]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	}
	for _, f := range fields {
		_ = binary.Write(fmtChunk, binary.LittleEndian, f)
	}

	out := &bytes.Buffer{}
	out.WriteString("RIFF")
	_ = binary.Write(out, binary.LittleEndian, uint32(4+8+fmtChunk.Len()+8+data.Len()))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	_ = binary.Write(out, binary.LittleEndian, uint32(fmtChunk.Len()))
	out.Write(fmtChunk.Bytes())
	out.WriteString("data")
	_ = binary.Write(out, binary.LittleEndian, uint32(data.Len()))
	out.Write(data.Bytes())
	return out.Bytes()
}
