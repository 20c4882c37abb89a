package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sroanalysis/internal/config"
	"sroanalysis/internal/exporter"
	"sroanalysis/internal/measures"
)

// S3Sink uploads every table as a CSV object to an S3-compatible bucket
// (AWS S3 or MinIO). Objects live under <prefix>/<name>.csv.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Sink creates an S3 sink. Credentials fall back to the default AWS
// chain when no static key pair is configured.
func NewS3Sink(ctx context.Context, cfg config.S3Config, logger *slog.Logger, optFns ...func(*s3.Options)) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &S3Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Name returns the sink name used in configuration
func (s *S3Sink) Name() string { return config.SinkS3 }

// Key returns the object key of a table
func (s *S3Sink) Key(name string) string {
	return path.Join(s.prefix, name+".csv")
}

// WriteTable uploads the table as a CSV object under the configured prefix
func (s *S3Sink) WriteTable(ctx context.Context, name string, t *measures.Table) error {
	body, err := exporter.TableBytes(t)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	key := s.Key(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.InfoContext(ctx, "Table uploaded",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(body)))
	return nil
}

// Close is a no-op; the client holds no open connections
func (s *S3Sink) Close() error { return nil }
