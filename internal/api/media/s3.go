package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/vidstream/vidstream/config"
	"github.com/vidstream/vidstream/internal/types"
)

var _ UploadService = (*S3Uploader)(nil)

// S3Uploader stores assets in an S3-compatible bucket (AWS or MinIO) and
// serves them through the configured public URL.
type S3Uploader struct {
	logger *slog.Logger
	cfg    config.MediaConfig
	client *s3.Client
}

func NewS3Uploader(ctx context.Context, cfg config.MediaConfig, logger *slog.Logger) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{logger: logger, cfg: cfg, client: client}, nil
}

// storageKey scatters objects by date so buckets stay listable.
func storageKey(localPath string) string {
	d := time.Now()
	return fmt.Sprintf("assets/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), filepath.Ext(localPath))
}

// Upload pushes the staged file to the bucket and removes the local copy.
// The temp file is removed even when the upload fails, matching the
// fail-soft contract: the caller decides whether a missing result is fatal.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	if localPath == "" {
		return nil, nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged asset: %w", types.ErrUploadFailed)
	}
	defer f.Close()
	defer os.Remove(localPath)

	key := storageKey(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		u.logger.WarnContext(ctx, "Asset upload failed",
			slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("put object %s: %w", key, types.ErrUploadFailed)
	}

	return &UploadResult{URL: fmt.Sprintf("%s/%s", u.cfg.PublicURL, key)}, nil
}
