// Package archive copies finished renders into an S3 compatible bucket.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/storylinez/storylinez-go/internal/config"
)

// ObjectPutter is the subset of *s3.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver implements pipeline.Archiver for Cloudflare R2
type R2Archiver struct {
	s3         ObjectPutter
	http       *http.Client
	bucketName string
	publicURL  string
	log        *slog.Logger
}

// NewR2Archiver creates an archiver from the R2 settings.
func NewR2Archiver(ctx context.Context, cfg config.R2Config, logger *slog.Logger) (*R2Archiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return NewArchiver(s3Client, cfg.BucketName, cfg.PublicURL, logger), nil
}

// NewArchiver wraps an existing object client.
func NewArchiver(putter ObjectPutter, bucket, publicURL string, logger *slog.Logger) *R2Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &R2Archiver{
		s3:         putter,
		http:       &http.Client{Timeout: 30 * time.Minute},
		bucketName: bucket,
		publicURL:  strings.TrimRight(publicURL, "/"),
		log:        logger.With("component", "archive"),
	}
}

// Key is the object key a render is stored under.
func Key(projectID, renderID string) string {
	return fmt.Sprintf("renders/%s/%s.mp4", projectID, renderID)
}

// ArchiveRender streams sourceURL into the bucket and returns the public URL.
func (a *R2Archiver) ArchiveRender(ctx context.Context, projectID, renderID, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid render url: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download render: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download render: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	key := Key(projectID, renderID)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        resp.Body,
		ContentType: aws.String(contentType),
	}
	if resp.ContentLength > 0 {
		input.ContentLength = aws.Int64(resp.ContentLength)
	}

	if _, err := a.s3.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	a.log.InfoContext(ctx, "render archived", "key", key, "bytes", resp.ContentLength)
	return a.PublicURL(key), nil
}

// PublicURL returns the public CDN URL for a key
func (a *R2Archiver) PublicURL(key string) string {
	if a.publicURL != "" {
		return fmt.Sprintf("%s/%s", a.publicURL, key)
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", a.bucketName, key)
}
