package sync

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config locates the backup object.
type S3Config struct {
	Bucket   string
	Key      string // "{date}" is replaced with the UTC export date (2006-01-02)
	Region   string
	Endpoint string // non-empty enables path-style addressing (MinIO and similar)
}

// S3Destination writes JSONL data to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	cfg    S3Config
	now    func() time.Time
}

// NewS3Destination creates an S3 destination using the default AWS
// credential chain.
func NewS3Destination(ctx context.Context, cfg S3Config) (*S3Destination, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client: s3.NewFromConfig(awsCfg, s3opts...),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (d *S3Destination) Name() string { return "s3://" + d.cfg.Bucket + "/" + d.cfg.Key }

// objectKey expands the key template for an export taken at t.
func (d *S3Destination) objectKey(t time.Time) string {
	return strings.ReplaceAll(d.cfg.Key, "{date}", t.UTC().Format("2006-01-02"))
}

// Write uploads data to S3 under the configured object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.cfg.Bucket),
		Key:         aws.String(d.objectKey(d.now())),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
