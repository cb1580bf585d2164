package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/audio/audiotest"
	"github.com/ekisa-team/deepvoice/internal/backend"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(name, args)
	out, _ := a.Get(0).([]byte)
	errOut, _ := a.Get(1).([]byte)
	return out, errOut, a.Error(2)
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []float32{0.5, -0.25}, Downmix([]float32{1, 0, -0.5, 0}, 2))

	mono := []float32{0.1, 0.2}
	assert.Equal(t, mono, Downmix(mono, 1))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "wav", Extension("clip.WAV"))
	assert.Equal(t, "mp3", Extension("/tmp/a.b.mp3"))
	assert.Equal(t, "", Extension("noext"))
}

func TestDecode_WAVStereo(t *testing.T) {
	samples := audiotest.Sine(440, 16000, 0.5)
	data := audiotest.WAV(t, samples, 16000, 2)

	clip, err := NewDecoders(Options{}).Decode(context.Background(), "voice.wav", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 16000, clip.SampleRate)
	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, "wav", clip.Format)
	require.Len(t, clip.Samples, len(samples))
	assert.Equal(t, 500*time.Millisecond, clip.Duration())

	for i := 0; i < len(samples); i += 97 {
		assert.InDelta(t, samples[i], float64(clip.Samples[i]), 1e-3)
	}
}

func TestDecode_WAVEncodings(t *testing.T) {
	samples := audiotest.Sine(440, 16000, 0.25)

	tests := []struct {
		name  string
		data  []byte
		delta float64
	}{
		{"float32", audiotest.FloatWAV(samples, 16000, 32), 1e-6},
		{"float64", audiotest.FloatWAV(samples, 16000, 64), 1e-6},
		{"extensible float", audiotest.RawWAV{SampleRate: 16000, BitDepth: 32, Format: audiotest.FormatExtensible, SubFormat: audiotest.FormatIEEEFloat}.Encode(samples), 1e-6},
		{"extensible pcm", audiotest.RawWAV{SampleRate: 16000, BitDepth: 16, Format: audiotest.FormatExtensible, SubFormat: audiotest.FormatPCM}.Encode(samples), 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip, err := WAVDecoder{}.Decode(tt.data)
			require.NoError(t, err)

			assert.Equal(t, 16000, clip.SampleRate)
			assert.Equal(t, 1, clip.Channels)
			require.Len(t, clip.Samples, len(samples))
			for i := 0; i < len(samples); i += 53 {
				assert.InDelta(t, samples[i], float64(clip.Samples[i]), tt.delta)
			}
		})
	}
}

func TestDecode_WAVRejectsUnknownEncodings(t *testing.T) {
	samples := audiotest.Sine(440, 16000, 0.1)

	tests := []struct {
		name string
		wav  audiotest.RawWAV
	}{
		{"a-law", audiotest.RawWAV{SampleRate: 16000, BitDepth: 8, Format: 0x0006}},
		{"extensible a-law", audiotest.RawWAV{SampleRate: 16000, BitDepth: 16, Format: audiotest.FormatExtensible, SubFormat: 0x0006}},
		{"16-bit float", audiotest.RawWAV{SampleRate: 16000, BitDepth: 16, Format: audiotest.FormatIEEEFloat}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WAVDecoder{}.Decode(tt.wav.Encode(samples))
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestDecode_Fixtures(t *testing.T) {
	tests := []struct {
		file       string
		format     string
		sampleRate int
		channels   int
		samples    int
		tolerance  int
	}{
		// 40 MPEG-2 Layer III frames of 576 samples behind an ID3v2 tag.
		{"voice.mp3", "mp3", 22050, 2, 40 * 576, 576},
		{"voice.ogg", "ogg", 44100, 1, 44100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", tt.file))
			require.NoError(t, err)

			clip, err := NewDecoders(Options{}).Decode(context.Background(), tt.file, bytes.NewReader(data))
			require.NoError(t, err)

			assert.Equal(t, tt.format, clip.Format)
			assert.Equal(t, tt.sampleRate, clip.SampleRate)
			assert.Equal(t, tt.channels, clip.Channels)
			assert.InDelta(t, tt.samples, len(clip.Samples), float64(tt.tolerance))
			assert.Greater(t, rms(clip.Samples), 0.001)
			for _, s := range clip.Samples {
				require.False(t, math.IsNaN(float64(s)))
				require.LessOrEqual(t, math.Abs(float64(s)), 1.0)
			}

			resampled, err := NewDecoders(Options{SampleRate: 16000}).Decode(context.Background(), tt.file, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 16000, resampled.SampleRate)
			assert.InDelta(t, clip.Duration().Seconds(), resampled.Duration().Seconds(), 0.1)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	d := NewDecoders(Options{})

	_, err := d.Decode(context.Background(), "clip.flac", bytes.NewReader([]byte("fLaC")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = d.Decode(context.Background(), "clip.wav", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyAudio)

	_, err = d.Decode(context.Background(), "clip.wav", bytes.NewReader([]byte("definitely not a riff file")))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = d.Decode(context.Background(), "clip.mp3", bytes.NewReader([]byte("garbage")))
	assert.Error(t, err)

	_, err = d.Decode(context.Background(), "clip.ogg", bytes.NewReader([]byte("garbage")))
	assert.ErrorIs(t, err, ErrDecode)
}

func f32le(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestDecode_FFmpegFallback(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", "ffmpeg", mock.Anything).Return(
		f32le([]float32{0.1, -0.1, 0.2}),
		[]byte("Input #0, flac, from 'pipe:0':\n  Stream #0:0: Audio: flac, 16000 Hz, mono, s16\n"),
		nil,
	)

	ff := NewFFmpegDecoderWithExecutor(backend.NewExecutorWithRunner("ffmpeg", time.Second, runner))
	d := NewDecoders(Options{FFmpeg: ff})

	clip, err := d.Decode(context.Background(), "clip.flac", bytes.NewReader([]byte("fLaC")))
	require.NoError(t, err)
	assert.Equal(t, 16000, clip.SampleRate)
	assert.Equal(t, []float32{0.1, -0.1, 0.2}, clip.Samples)

	// A corrupt wav is retried through ffmpeg.
	clip, err = d.Decode(context.Background(), "clip.wav", bytes.NewReader([]byte("broken")))
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", clip.Format)

	runner.AssertExpectations(t)
}

func TestDecode_FFmpegFailure(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", "ffmpeg", mock.Anything).Return([]byte(nil), []byte("Invalid data"), errors.New("exit status 1"))

	ff := NewFFmpegDecoderWithExecutor(backend.NewExecutorWithRunner("ffmpeg", time.Second, runner))
	_, err := NewDecoders(Options{FFmpeg: ff}).Decode(context.Background(), "clip.aac", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestResample_Passthrough(t *testing.T) {
	c := &Clip{Samples: []float32{1, 2}, SampleRate: 16000}

	out, err := Resample(c, 0)
	require.NoError(t, err)
	assert.Same(t, c, out)

	out, err = Resample(c, 16000)
	require.NoError(t, err)
	assert.Same(t, c, out)
}

func TestResample_Downsample(t *testing.T) {
	samples := audiotest.Sine(220, 32000, 1)
	c := &Clip{Samples: make([]float32, len(samples)), SampleRate: 32000, Channels: 1}
	for i, s := range samples {
		c.Samples[i] = float32(s)
	}

	out, err := Resample(c, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, out.SampleRate)
	assert.InDelta(t, 16000, len(out.Samples), 1600)
}
