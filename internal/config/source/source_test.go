package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/deepvoice/internal/config"
)

// --- Mock types ---

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(name, args)
	return nil, nil, a.Error(0)
}

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := &s3.ListObjectsV2Output{}
	for k, v := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

// --- Tests ---

func TestGetDownloader(t *testing.T) {
	for _, st := range []config.SourceType{config.SourceTypeLocal, config.SourceTypeHuggingFace, config.SourceTypeS3} {
		d, err := GetDownloader(context.Background(), st)
		require.NoError(t, err)
		assert.NotNil(t, d)
	}

	_, err := GetDownloader(context.Background(), "ftp")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestLocalDownloader(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "lstm"), 0o755))

	mc := &config.ModelConfig{}
	mc.SetLocalSource(config.LocalSource{Path: "lstm"})

	path, cached, err := (&LocalDownloader{}).Download(context.Background(), mc, base)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, filepath.Join(base, "lstm"), path)

	mc.SetLocalSource(config.LocalSource{Path: "missing"})
	_, _, err = (&LocalDownloader{}).Download(context.Background(), mc, base)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHuggingFaceDownloader_WritesMarkerAndSkips(t *testing.T) {
	base := t.TempDir()
	runner := new(MockRunner)
	runner.On("Run", "hf", mock.MatchedBy(func(args []string) bool {
		return args[0] == "download" && args[1] == "acme/lstm" && contains(args, "--revision")
	})).Return(nil).Once()

	mc := &config.ModelConfig{}
	mc.SetHuggingFaceSource(config.HuggingFaceSource{Repo: "acme/lstm", Revision: "v1"})

	d := NewHuggingFaceDownloaderWithRunner(runner, time.Millisecond)

	path, cached, err := d.Download(context.Background(), mc, base)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.FileExists(t, filepath.Join(path, markerFilename))

	// Second call hits the marker and never invokes the runner.
	_, cached, err = d.Download(context.Background(), mc, base)
	require.NoError(t, err)
	assert.True(t, cached)

	runner.AssertExpectations(t)
}

func TestHuggingFaceDownloader_Retries(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", "hf", mock.Anything).Return(errors.New("network down")).Times(defaultMaxRetries)

	mc := &config.ModelConfig{}
	mc.SetHuggingFaceSource(config.HuggingFaceSource{Repo: "acme/lstm"})

	d := NewHuggingFaceDownloaderWithRunner(runner, time.Millisecond)
	_, _, err := d.Download(context.Background(), mc, t.TempDir())
	assert.ErrorContains(t, err, "network down")

	runner.AssertExpectations(t)
}

func TestS3Downloader_Prefix(t *testing.T) {
	client := &mockS3{objects: map[string][]byte{
		"models/lstm/model.onnx":         []byte("onnx"),
		"models/lstm/scaler.json":        []byte(`{"mean":[0],"scale":[1]}`),
		"models/lstm/label_encoder.json": []byte(`{"classes":["Deepfake","Real"]}`),
		"models/other/ignored.bin":       []byte("x"),
	}}

	mc := &config.ModelConfig{Source: config.SourceConfig{S3: &config.S3Source{Bucket: "voices", Prefix: "/models/lstm/"}}}
	d := NewS3Downloader(func(config.S3Source) S3Client { return client })

	base := t.TempDir()
	dir, cached, err := d.Download(context.Background(), mc, base)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, filepath.Join(base, "s3", "voices", "models", "lstm"), dir)
	assert.FileExists(t, filepath.Join(dir, "model.onnx"))
	assert.NoFileExists(t, filepath.Join(dir, "ignored.bin"))
	assert.Equal(t, 3, client.gets)

	_, cached, err = d.Download(context.Background(), mc, base)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 3, client.gets)
}

func TestS3Downloader_MissingKey(t *testing.T) {
	client := &mockS3{objects: map[string][]byte{}}
	mc := &config.ModelConfig{Source: config.SourceConfig{S3: &config.S3Source{Bucket: "voices", Keys: []string{"model.onnx"}}}}
	d := NewS3Downloader(func(config.S3Source) S3Client { return client })

	_, _, err := d.Download(context.Background(), mc, t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Downloader_EmptyPrefix(t *testing.T) {
	client := &mockS3{objects: map[string][]byte{}}
	mc := &config.ModelConfig{Source: config.SourceConfig{S3: &config.S3Source{Bucket: "voices", Prefix: "nothing"}}}
	d := NewS3Downloader(func(config.S3Source) S3Client { return client })

	_, _, err := d.Download(context.Background(), mc, t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Downloader_RejectsEscapingKeys(t *testing.T) {
	tests := []struct {
		name string
		src  config.S3Source
		objs map[string][]byte
	}{
		{"explicit key", config.S3Source{Bucket: "voices", Prefix: "models/lstm", Keys: []string{"../../../escaped.onnx"}}, map[string][]byte{"../escaped.onnx": []byte("x")}},
		{"listed key", config.S3Source{Bucket: "voices", Prefix: "models"}, map[string][]byte{"models/../../escaped.onnx": []byte("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{objects: tt.objs}
			mc := &config.ModelConfig{Source: config.SourceConfig{S3: &tt.src}}
			d := NewS3Downloader(func(config.S3Source) S3Client { return client })

			base := t.TempDir()
			_, _, err := d.Download(context.Background(), mc, base)
			assert.ErrorIs(t, err, ErrUnsafeKey)
			assert.Zero(t, client.gets)
			assert.NoFileExists(t, filepath.Join(base, "escaped.onnx"))
		})
	}
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
