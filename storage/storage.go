package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// BlobStorage is the object-storage surface the screenshot and upload
// paths write through. Implementations must reject empty or traversing
// paths; keys are slash-separated, like "42/exec-1_final.png".
type BlobStorage interface {
	Upload(ctx context.Context, path string, reader io.Reader) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// GetURL returns where a stored object can be fetched from: a
	// presigned URL on S3, the absolute file path locally.
	GetURL(ctx context.Context, path string) (string, error)
}

// Config selects and parameterizes a blob storage backend.
type Config struct {
	Type          string        // "local" or "s3"
	BaseDir       string        // local: directory screenshots and uploads live under
	Bucket        string        // s3: bucket name
	Region        string        // s3: AWS region
	PresignExpiry time.Duration // s3: presigned URL lifetime
}

// NewBlobStorage builds the backend cfg.Type names.
func NewBlobStorage(cfg Config) (BlobStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "local":
		return NewLocalStorage(cfg.BaseDir)

	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 storage")
		}
		if cfg.Region == "" {
			return nil, fmt.Errorf("region is required for s3 storage")
		}
		s3Storage, err := NewS3Storage(cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		if cfg.PresignExpiry > 0 {
			s3Storage.presignExpiration = cfg.PresignExpiry
		}
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
