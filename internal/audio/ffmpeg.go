package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/ekisa-team/deepvoice/internal/backend"
)

const (
	ffmpegTimeout      = 30 * time.Second
	ffmpegFallbackRate = 22050
)

var streamRateRe = regexp.MustCompile(`Audio: .*?(\d+) Hz`)

// FFmpegDecoder decodes anything ffmpeg understands by piping the upload
// through it and reading mono f32le at the source rate.
type FFmpegDecoder struct {
	executor *backend.Executor
}

// NewFFmpegDecoder resolves the ffmpeg binary.
func NewFFmpegDecoder(binaryPath string) (*FFmpegDecoder, error) {
	executor, err := backend.NewExecutor(binaryPath, ffmpegTimeout)
	if err != nil {
		return nil, err
	}
	return &FFmpegDecoder{executor: executor}, nil
}

// NewFFmpegDecoderWithExecutor wraps an existing executor.
func NewFFmpegDecoderWithExecutor(executor *backend.Executor) *FFmpegDecoder {
	return &FFmpegDecoder{executor: executor}
}

// DecodeContext runs ffmpeg over data.
func (d *FFmpegDecoder) DecodeContext(ctx context.Context, data []byte) (*Clip, error) {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", "pipe:0",
		"-vn",
		"-ac", "1",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"pipe:1",
	}

	stdout, stderr, err := d.executor.Execute(ctx, args, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %w", ErrDecode, err)
	}
	if len(stdout) < 4 {
		return nil, ErrEmptyAudio
	}

	rate := ffmpegFallbackRate
	if m := streamRateRe.FindSubmatch(stderr); m != nil {
		if r, err := strconv.Atoi(string(m[1])); err == nil && r > 0 {
			rate = r
		}
	}

	n := len(stdout) / 4
	samples := make([]float32, n)
	for i := range n {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(stdout[i*4:]))
	}

	return &Clip{
		Samples:    samples,
		SampleRate: rate,
		Channels:   1,
		Format:     "ffmpeg",
	}, nil
}
