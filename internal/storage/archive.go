package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveConfig contains object storage configuration.
type ArchiveConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Region          string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Retry settings; the client also retries internally.
	MaxRetries   int
	RetryBackoff time.Duration
}

// ArchiveMetrics tracks archive operations.
type ArchiveMetrics struct {
	TotalUploads atomic.Uint64
	UploadBytes  atomic.Uint64
	UploadErrors atomic.Uint64
}

// Archiver uploads finished clips to MinIO-compatible object storage.
type Archiver struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
	config ArchiveConfig

	metrics ArchiveMetrics
}

// NewArchiver creates the object store client and ensures the bucket exists.
func NewArchiver(config ArchiveConfig, logger *zap.Logger) (*Archiver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 5 * time.Minute
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	a := &Archiver{
		client: client,
		bucket: config.Bucket,
		logger: logger.Named("archiver"),
		config: config,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		a.logger.Info("Created archive bucket", zap.String("bucket", config.Bucket))
	}

	return a, nil
}

// Upload stores a local clip file under the given key. The upload is retried
// with a fresh exponential backoff per call; FPutObject reopens the file on
// each attempt so retries are always safe.
func (a *Archiver) Upload(ctx context.Context, key, filePath, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	newBackoff := func() backoff.BackOff {
		ebo := backoff.NewExponentialBackOff()
		if a.config.RetryBackoff > 0 {
			ebo.InitialInterval = a.config.RetryBackoff
		}
		ebo.Reset()
		if a.config.MaxRetries > 0 {
			return backoff.WithMaxRetries(ebo, uint64(a.config.MaxRetries))
		}
		return ebo
	}

	op := func() error {
		info, err := a.client.FPutObject(ctx, a.bucket, key, filePath, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			a.metrics.UploadErrors.Add(1)
			return err
		}

		a.metrics.TotalUploads.Add(1)
		a.metrics.UploadBytes.Add(uint64(info.Size))

		a.logger.Debug("Clip uploaded",
			zap.String("key", key),
			zap.Int64("size", info.Size),
			zap.String("etag", info.ETag))
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Remove deletes an archived clip.
func (a *Archiver) Remove(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// PresignedURL creates a time-limited download link for an archived clip.
func (a *Archiver) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ContentTypeFor maps a clip path to its upload content type.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "video/x-matroska"
	}
}

// Stat reports the size of a local file, zero if unavailable.
func Stat(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}
