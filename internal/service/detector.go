// Package service implements the deepfake voice detection pipeline on top of
// the audio, feature, model and backend packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ekisa-team/deepvoice/internal/audio"
	"github.com/ekisa-team/deepvoice/internal/backend"
	"github.com/ekisa-team/deepvoice/internal/backend/mock"
	"github.com/ekisa-team/deepvoice/internal/config"
	"github.com/ekisa-team/deepvoice/internal/feature"
	"github.com/ekisa-team/deepvoice/internal/model"
	"github.com/ekisa-team/deepvoice/internal/trace"
)

// Labels produced by the default label encoder.
const (
	LabelReal     = "Real"
	LabelDeepfake = "Deepfake"
)

// Explanation templates.
const (
	ExplanationModelReal     = "This audio shows natural vocal characteristics consistent with human speech."
	ExplanationModelDeepfake = "This audio contains patterns and artifacts commonly found in AI-generated speech."
	ExplanationMockReal      = "This audio appears to be genuine with natural vocal characteristics."
	ExplanationMockDeepfake  = "This audio shows patterns consistent with AI-generated speech."
)

// Result is the outcome of a detection.
type Result struct {
	Label       string   `json:"label"`
	Probability float64  `json:"probability"`
	Explanation string   `json:"explanation"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	ModelID         string  `json:"model_id,omitempty"`
	Backend         string  `json:"backend"`
	Mock            bool    `json:"mock"`
	Score           float64 `json:"score"`
	Confidence      float64 `json:"confidence"`
	WindowSize      int     `json:"window_size,omitempty"`
	SampleRate      int     `json:"sample_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	LatencyMS       int64   `json:"latency_ms"`
	TraceID         string  `json:"trace_id,omitempty"`
}

// ModelInfo summarises a registered model.
type ModelInfo struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Primary bool   `json:"primary"`
}

// Detector classifies uploaded clips as genuine or synthetic speech.
type Detector struct {
	backends *backend.Registry
	models   *model.Registry
	mock     backend.Backend

	decoders  *audio.Decoders
	extractor *feature.Extractor
	server    config.ServerConfig
	fallback  config.FallbackMode
	mu        sync.RWMutex
}

// NewDetector creates a Detector configured from cfg. The mock backend is taken
// from backends when registered, otherwise a private one is created.
func NewDetector(backends *backend.Registry, models *model.Registry, cfg *config.Config) (*Detector, error) {
	d := &Detector{
		backends: backends,
		models:   models,
	}

	if b, ok := backends.Get(backend.BackendProviderMock); ok {
		d.mock = b
	} else {
		d.mock = mock.NewBackend(nil)
	}

	if err := d.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Reconfigure applies a new config: decoders, feature extractor, upload
// allow-list and fallback mode. On error the previous settings stay in place.
func (d *Detector) Reconfigure(cfg *config.Config) error {
	extractor, err := feature.New(feature.FromConfig(cfg.Features))
	if err != nil {
		return err
	}

	opts := audio.Options{SampleRate: cfg.Audio.SampleRate}
	if cfg.Audio.FFmpegPath != "" {
		ffmpeg, err := audio.NewFFmpegDecoder(cfg.Audio.FFmpegPath)
		if err != nil {
			slog.Warn("FFmpeg unavailable, using native decoders only", "path", cfg.Audio.FFmpegPath, "error", err)
		} else {
			opts.FFmpeg = ffmpeg
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.decoders = audio.NewDecoders(opts)
	d.extractor = extractor
	d.server = cfg.Server
	d.fallback = cfg.Services.Detect.Fallback
	return nil
}

func (d *Detector) snapshot() (*audio.Decoders, *feature.Extractor, config.ServerConfig, config.FallbackMode) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.decoders, d.extractor, d.server, d.fallback
}

// Features validates the file name, decodes r and returns the MFCC mean vector.
func (d *Detector) Features(ctx context.Context, filename string, r io.Reader) ([]float64, error) {
	decoders, extractor, server, _ := d.snapshot()
	if !server.IsExtensionAllowed(audio.Extension(filename)) {
		return nil, ErrUnsupportedFileType
	}

	features, _, err := d.features(ctx, decoders, extractor, filename, r)
	return features, err
}

func (d *Detector) features(ctx context.Context, decoders *audio.Decoders, extractor *feature.Extractor, filename string, r io.Reader) ([]float64, *audio.Clip, error) {
	ctx, span := trace.StartSpan(ctx, trace.SpanAudioDecode)
	clip, err := decoders.Decode(ctx, filename, r)
	if err != nil {
		trace.RecordError(span, err)
		span.End()
		return nil, nil, fmt.Errorf("%w: %w", ErrFeatureExtraction, err)
	}
	span.SetAttributes(trace.AudioAttrs(clip.Format, clip.SampleRate, clip.Channels, len(clip.Samples))...)
	span.End()

	_, span = trace.StartSpan(ctx, trace.SpanFeatureMFCC)
	defer span.End()

	means, err := extractor.MeanVector(clip.Float64(), clip.SampleRate)
	if err != nil {
		trace.RecordError(span, err)
		return nil, nil, fmt.Errorf("%w: %w", ErrFeatureExtraction, err)
	}
	span.SetAttributes(attribute.Int(trace.AttrFeatureCount, len(means)))

	return means, clip, nil
}

// Detect runs the full pipeline: validate, decode, extract features and
// classify. Without a usable model it returns a mock result, unless the
// fallback mode is "error".
func (d *Detector) Detect(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	start := time.Now()

	ctx, span := trace.StartSpan(ctx, trace.SpanDetectRequest)
	defer span.End()
	span.SetAttributes(attribute.String(trace.AttrAudioFilename, filename))

	decoders, extractor, server, fallback := d.snapshot()
	if !server.IsExtensionAllowed(audio.Extension(filename)) {
		trace.RecordError(span, ErrUnsupportedFileType)
		return nil, ErrUnsupportedFileType
	}

	features, clip, err := d.features(ctx, decoders, extractor, filename, r)
	if err != nil {
		slog.Warn("Feature extraction failed", "filename", filename, "error", err)
		trace.RecordError(span, err)
		return nil, err
	}

	var result *Result
	instance, ok := d.models.Primary()
	switch {
	case ok && instance.Provider != backend.BackendProviderMock:
		result, err = d.classify(ctx, instance, features)
	case ok:
		result, err = d.fabricate(ctx, instance.ID)
	case fallback == config.FallbackError:
		err = fmt.Errorf("%w: %w", ErrClassification, model.ErrNoUsableModel)
	default:
		result, err = d.fabricate(ctx, "")
	}
	if err != nil {
		slog.Error("Classification failed", "filename", filename, "error", err)
		trace.RecordError(span, err)
		return nil, err
	}

	result.Metadata.SampleRate = clip.SampleRate
	result.Metadata.DurationSeconds = clip.Duration().Seconds()
	result.Metadata.LatencyMS = time.Since(start).Milliseconds()
	result.Metadata.TraceID = trace.TraceID(ctx)

	span.SetAttributes(
		attribute.String(trace.AttrResultLabel, result.Label),
		attribute.Float64(trace.AttrResultScore, result.Probability),
	)
	slog.Info("Detection completed",
		"filename", filename,
		"label", result.Label,
		"probability", result.Probability,
		"mock", result.Metadata.Mock,
		"latency_ms", result.Metadata.LatencyMS,
	)

	return result, nil
}

// classify scales the features, windows them and runs the model's backend.
func (d *Detector) classify(ctx context.Context, instance *model.ModelInstance, features []float64) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, trace.SpanClassifierInfer)
	defer span.End()
	span.SetAttributes(trace.ModelAttrs(instance.ID, string(instance.Provider), false)...)

	fail := func(err error) (*Result, error) {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	b, ok := d.backends.Get(instance.Provider)
	if !ok {
		return fail(fmt.Errorf("%w: %s", backend.ErrNotFound, instance.Provider))
	}

	scaled, err := instance.Scaler.Transform(features)
	if err != nil {
		return fail(err)
	}

	window := instance.WindowSize()
	input, shape, err := Windows(scaled, window)
	if err != nil {
		return fail(err)
	}

	resp, err := b.Infer(ctx, &backend.Request{
		ModelPath:  instance.ModelPath,
		Input:      input,
		Shape:      shape,
		Parameters: instance.Parameters(),
	})
	if err != nil {
		return fail(err)
	}

	score, err := Score(resp.Output)
	if err != nil {
		return fail(err)
	}

	label, confidence, err := Decide(instance.Encoder, score)
	if err != nil {
		return fail(err)
	}

	// probability is the raw class-1 score whichever label wins.
	return &Result{
		Label:       label,
		Probability: score,
		Explanation: Explain(label, false),
		Metadata: Metadata{
			ModelID:    instance.ID,
			Backend:    string(instance.Provider),
			Score:      score,
			Confidence: confidence,
			WindowSize: window,
		},
	}, nil
}

// fabricate produces a random result through the mock backend.
func (d *Detector) fabricate(ctx context.Context, modelID string) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, trace.SpanClassifierInfer)
	defer span.End()
	span.SetAttributes(trace.ModelAttrs(modelID, string(backend.BackendProviderMock), true)...)

	resp, err := d.mock.Infer(ctx, &backend.Request{ModelPath: modelID})
	if err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	score, err := Score(resp.Output)
	if err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	label, confidence, err := Decide(model.DefaultLabelEncoder(), score)
	if err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	// Mock results report the drawn confidence as the probability.
	return &Result{
		Label:       label,
		Probability: confidence,
		Explanation: Explain(label, true),
		Metadata: Metadata{
			ModelID:    modelID,
			Backend:    string(backend.BackendProviderMock),
			Mock:       true,
			Score:      score,
			Confidence: confidence,
		},
	}, nil
}

// Models lists the registered detector models.
func (d *Detector) Models() []ModelInfo {
	primary, _ := d.models.Primary()

	instances := d.models.List()
	out := make([]ModelInfo, 0, len(instances))
	for _, instance := range instances {
		info := ModelInfo{
			ID:      instance.ID,
			Backend: string(instance.Provider),
			Status:  string(instance.Status()),
			Primary: primary != nil && primary.ID == instance.ID,
		}
		if err := instance.Err(); err != nil {
			info.Error = err.Error()
		}
		out = append(out, info)
	}
	return out
}

// MockActive reports whether Detect currently fabricates results.
func (d *Detector) MockActive() bool {
	if instance, ok := d.models.Primary(); ok {
		return instance.Provider == backend.BackendProviderMock
	}
	_, _, _, fallback := d.snapshot()
	return fallback != config.FallbackError
}

// Ready reports whether a real classifier is loaded.
func (d *Detector) Ready() bool {
	instance, ok := d.models.Primary()
	return ok && instance.Provider != backend.BackendProviderMock
}

// Windows standardises the feature vector into the classifier's input tensor.
// With size 0 the tensor is [1, n]; otherwise it holds every contiguous run of
// size features, shaped [1, n-size+1, size].
func Windows(x []float64, size int) ([]float32, []int64, error) {
	n := len(x)
	switch {
	case n == 0:
		return nil, nil, fmt.Errorf("%w: empty feature vector", backend.ErrInvalidInput)
	case size < 0 || size > n:
		return nil, nil, fmt.Errorf("%w: window size %d for %d features", backend.ErrInvalidInput, size, n)
	case size == 0:
		out := make([]float32, n)
		for i, v := range x {
			out[i] = float32(v)
		}
		return out, []int64{1, int64(n)}, nil
	}

	count := n - size + 1
	out := make([]float32, 0, count*size)
	for i := range count {
		for j := range size {
			out = append(out, float32(x[i+j]))
		}
	}
	return out, []int64{1, int64(count), int64(size)}, nil
}

// Score extracts the probability of class index 1 from a classifier output.
// A single value is a sigmoid output; two values are softmax probabilities.
func Score(output []float32) (float64, error) {
	var p float64
	switch len(output) {
	case 0:
		return 0, backend.ErrEmptyOutput
	case 2:
		p = float64(output[1])
	default:
		p = float64(output[0])
	}

	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: score %v outside [0, 1]", backend.ErrInvalidInput, p)
	}
	return p, nil
}

// Decide rounds the score half-to-even into a class index and returns its label
// with the confidence of that class.
func Decide(encoder *model.LabelEncoder, score float64) (string, float64, error) {
	if encoder == nil {
		encoder = model.DefaultLabelEncoder()
	}

	class := int(math.RoundToEven(score))
	label, err := encoder.InverseTransform(class)
	if err != nil {
		return "", 0, err
	}

	probability := score
	if class == 0 {
		probability = 1 - score
	}
	return label, probability, nil
}

// Explain returns the explanation template for a label.
func Explain(label string, mocked bool) string {
	switch {
	case mocked && label == LabelReal:
		return ExplanationMockReal
	case mocked:
		return ExplanationMockDeepfake
	case label == LabelReal:
		return ExplanationModelReal
	default:
		return ExplanationModelDeepfake
	}
}

// IsClientError reports whether err was caused by the upload itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedFileType) || errors.Is(err, ErrFeatureExtraction)
}
