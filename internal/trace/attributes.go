package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanDetectRequest   = "detect.request"
	SpanAudioDecode     = "audio.decode"
	SpanFeatureMFCC     = "feature.mfcc"
	SpanClassifierInfer = "classifier.infer"
)

// Attribute keys.
const (
	AttrAudioFilename   = "audio.filename"
	AttrAudioFormat     = "audio.format"
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioChannels   = "audio.channels"
	AttrAudioSamples    = "audio.samples"
	AttrFeatureCount    = "feature.count"
	AttrFeatureFrames   = "feature.frames"
	AttrModelID         = "model.id"
	AttrModelProvider   = "model.provider"
	AttrModelMock       = "model.mock"
	AttrResultLabel     = "result.label"
	AttrResultScore     = "result.probability"
)

// AudioAttrs creates attributes for decoded audio.
func AudioAttrs(format string, sampleRate, channels, samples int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAudioFormat, format),
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Int(AttrAudioChannels, channels),
		attribute.Int(AttrAudioSamples, samples),
	}
}

// ModelAttrs creates attributes for the classifier in use.
func ModelAttrs(id, provider string, mock bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrModelID, id),
		attribute.String(AttrModelProvider, provider),
		attribute.Bool(AttrModelMock, mock),
	}
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// WithSpan executes fn within a new span, recording any error it returns.
func WithSpan(ctx context.Context, spanName string, fn func(context.Context) error, opts ...trace.SpanStartOption) error {
	ctx, span := StartSpan(ctx, spanName, opts...)
	defer span.End()

	if err := fn(ctx); err != nil {
		RecordError(span, err)
		return err
	}
	return nil
}
