package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/types"
)

const s3Scheme = "s3://"

// maxObjectSize bounds result set downloads.
const maxObjectSize = 64 << 20

// S3Store reads and writes export artifacts in S3 or an S3-compatible store.
type S3Store struct {
	client *s3.Client
	logger *zap.Logger
}

// NewS3Store loads the default AWS credential chain. A non-empty endpoint
// switches to path-style addressing for S3-compatible servers.
func NewS3Store(ctx context.Context, cfg *types.Config, logger *zap.Logger) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.ExportS3Region != "" {
		opts = append(opts, config.WithRegion(cfg.ExportS3Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	endpoint := cfg.ExportS3Endpoint
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, logger), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client *s3.Client, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{client: client, logger: logger}
}

// Put uploads body to an s3://bucket/key path.
func (s *S3Store) Put(ctx context.Context, path string, body []byte, contentType string) error {
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}

	s.logger.Info("artifact uploaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)))
	return nil
}

// Get downloads the object at an s3://bucket/key path.
func (s *S3Store) Get(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", path, err)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			s.logger.Warn("failed to close S3 object body", zap.Error(closeErr))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("object %s exceeds %d bytes", path, maxObjectSize)
	}
	return data, nil
}

// ValidateBucket checks that the bucket of path is reachable.
func (s *S3Store) ValidateBucket(ctx context.Context, path string) error {
	bucket, _, err := ParseS3Path(path)
	if err != nil {
		return err
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", bucket, err)
	}
	return nil
}

// IsS3Path reports whether path uses the s3:// scheme.
func IsS3Path(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

// ParseS3Path splits s3://bucket/key. Both parts must be non-empty.
func ParseS3Path(path string) (bucket, key string, err error) {
	if !IsS3Path(path) {
		return "", "", fmt.Errorf("invalid S3 path format: %s", path)
	}
	parts := strings.SplitN(strings.TrimPrefix(path, s3Scheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("invalid S3 path format: %s", path)
	}
	return parts[0], parts[1], nil
}
