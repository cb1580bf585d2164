package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/ekisa-team/deepvoice/internal/config"
)

// S3Client abstracts the S3 API operations used by [S3Downloader].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ClientFactory builds a client for a given source.
type S3ClientFactory func(src config.S3Source) S3Client

// S3Downloader mirrors objects under a bucket prefix into the models directory.
type S3Downloader struct {
	newClient S3ClientFactory
}

// NewS3Downloader creates an S3 downloader. A nil factory uses NewS3Client.
func NewS3Downloader(factory S3ClientFactory) *S3Downloader {
	if factory == nil {
		factory = NewS3Client
	}
	return &S3Downloader{newClient: factory}
}

// NewS3Client builds an [s3.Client] from the source settings and the standard
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN and AWS_REGION
// variables. Without credentials requests are anonymous. A custom endpoint
// (MinIO, R2) switches to path-style addressing.
func NewS3Client(src config.S3Source) S3Client {
	region := src.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	}

	if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: secret,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "Environment",
			}, nil
		}))
	}

	if src.Endpoint != "" {
		opts.BaseEndpoint = aws.String(src.Endpoint)
		opts.UsePathStyle = true
	}

	return s3.New(opts)
}

// Download fetches the configured keys, or every object under the prefix,
// into targetDir/s3/<bucket>/<prefix>. Objects already present with a matching
// size are skipped.
func (d *S3Downloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	src, ok := source.(config.S3Source)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	prefix := strings.Trim(src.Prefix, "/")
	localDir := filepath.Join(targetDir, "s3", src.Bucket, filepath.FromSlash(prefix))
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	client := d.newClient(src)

	objects, err := d.objects(ctx, client, src, prefix)
	if err != nil {
		return "", false, err
	}
	if len(objects) == 0 {
		return "", false, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, src.Bucket, prefix)
	}

	cached := true
	for _, obj := range objects {
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.key, prefix), "/")
		if rel == "" || strings.HasSuffix(obj.key, "/") {
			continue
		}

		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return "", false, fmt.Errorf("%w: s3://%s/%s", ErrUnsafeKey, src.Bucket, obj.key)
		}

		dst := filepath.Join(localDir, filepath.FromSlash(rel))
		if obj.size >= 0 {
			if info, err := os.Stat(dst); err == nil && info.Size() == obj.size {
				continue
			}
		}

		cached = false
		if err := d.fetch(ctx, client, src.Bucket, obj.key, dst); err != nil {
			return "", false, err
		}
		slog.Info("Artifact downloaded from S3", "bucket", src.Bucket, "key", obj.key, "path", dst)
	}

	return localDir, cached, nil
}

type s3Object struct {
	key  string
	size int64
}

// objects returns the explicit keys, or lists every object under the prefix.
func (d *S3Downloader) objects(ctx context.Context, client S3Client, src config.S3Source, prefix string) ([]s3Object, error) {
	if len(src.Keys) > 0 {
		out := make([]s3Object, 0, len(src.Keys))
		for _, k := range src.Keys {
			out = append(out, s3Object{key: path.Join(prefix, k), size: -1})
		}
		return out, nil
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(src.Bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	var out []s3Object
	pages := s3.NewListObjectsV2Paginator(client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", src.Bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, s3Object{key: aws.ToString(obj.Key), size: aws.ToInt64(obj.Size)})
		}
	}

	return out, nil
}

// fetch streams a single object to dst through a temp file.
func (d *S3Downloader) fetch(ctx context.Context, client S3Client, bucket, key, dst string) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}

// isS3NotFound reports whether err indicates the S3 object does not exist.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
