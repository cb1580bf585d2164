package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// Decoder turns an encoded file into a Clip.
type Decoder interface {
	Decode(data []byte) (*Clip, error)
}

// Options configures a Decoders set.
type Options struct {
	// SampleRate resamples every clip when non-zero.
	SampleRate int
	// FFmpeg, when set, decodes unknown extensions and retries native failures.
	FFmpeg *FFmpegDecoder
}

// Decoders picks a decoder by file extension.
type Decoders struct {
	byExt      map[string]Decoder
	ffmpeg     *FFmpegDecoder
	sampleRate int
}

// NewDecoders registers the native wav, mp3 and ogg decoders.
func NewDecoders(opts Options) *Decoders {
	return &Decoders{
		byExt: map[string]Decoder{
			"wav":  WAVDecoder{},
			"wave": WAVDecoder{},
			"mp3":  MP3Decoder{},
			"ogg":  OggDecoder{},
			"oga":  OggDecoder{},
		},
		ffmpeg:     opts.FFmpeg,
		sampleRate: opts.SampleRate,
	}
}

// Register adds or replaces the decoder for an extension.
func (d *Decoders) Register(ext string, dec Decoder) {
	d.byExt[normalizeExt(ext)] = dec
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return normalizeExt(filepath.Ext(name))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Decode reads r fully and decodes it according to name's extension.
func (d *Decoders) Decode(ctx context.Context, name string, r io.Reader) (*Clip, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", ErrDecode, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	ext := Extension(name)
	clip, err := d.decode(ctx, ext, data)
	if err != nil {
		return nil, err
	}
	if len(clip.Samples) == 0 {
		return nil, ErrEmptyAudio
	}

	return Resample(clip, d.sampleRate)
}

func (d *Decoders) decode(ctx context.Context, ext string, data []byte) (*Clip, error) {
	dec, ok := d.byExt[ext]
	if !ok {
		if d.ffmpeg == nil {
			return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
		}
		return d.ffmpeg.DecodeContext(ctx, data)
	}

	clip, err := dec.Decode(data)
	if err == nil || d.ffmpeg == nil || errors.Is(err, ErrEmptyAudio) {
		return clip, err
	}

	slog.Debug("Native decoder failed, retrying with ffmpeg", "ext", ext, "error", err)
	return d.ffmpeg.DecodeContext(ctx, data)
}
