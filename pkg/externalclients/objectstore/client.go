// Package objectstore wraps S3-compatible storage for recording media:
// uploading the final file under a deterministic tenant-scoped key and
// handing back a time-limited presigned URL.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/revloop/orchestrator/pkg/config"
)

// Client uploads objects and mints presigned download URLs.
type Client struct {
	s3       *s3.Client
	presign  *s3.PresignClient
	bucket   string
	presignTTL time.Duration
}

// New builds a Client from the application's object-store configuration.
// Credentials always come from the default AWS credential chain (env, IAM
// role, shared config); cfg.AccessKeyEnv and cfg.SecretKeyEnv are not read.
func New(ctx context.Context, cfg *appconfig.ObjectStoreConfig) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	ttl := cfg.PresignedTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &Client{
		s3:         s3Client,
		presign:    s3.NewPresignClient(s3Client),
		bucket:     cfg.Bucket,
		presignTTL: ttl,
	}, nil
}

// UploadResult is the stored location and a time-limited download URL.
type UploadResult struct {
	StoragePath  string
	PresignedURL string
	ExpiresAt    time.Time
}

// Upload streams body to key under the configured bucket and mints a
// presigned GET URL valid for the client's configured TTL (7-day default
// per the media-upload worker's retention expectation).
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (*UploadResult, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading object %s: %w", key, err)
	}

	url, expiresAt, err := c.Presign(ctx, key)
	if err != nil {
		return nil, err
	}
	return &UploadResult{StoragePath: key, PresignedURL: url, ExpiresAt: expiresAt}, nil
}

// Presign mints a fresh presigned GET URL for an already-stored object,
// used both right after upload and to refresh an expired URL later.
func (c *Client) Presign(ctx context.Context, key string) (url string, expiresAt time.Time, err error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.presignTTL))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presigning object %s: %w", key, err)
	}
	return req.URL, time.Now().Add(c.presignTTL), nil
}
