// Package storage uploads user media (avatars) to an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"curalink/config"
)

// ErrDisabled is returned by New when STORAGE_BACKEND is "none".
var ErrDisabled = errors.New("object storage is not configured")

// Uploader stores a file under key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// New builds the uploader selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	switch cfg.StorageBackend {
	case "", "none":
		return nil, ErrDisabled
	case "cloudinary":
		return NewCloudinary(cfg.CloudinaryURL, "curalink/avatars")
	case "s3":
		return NewS3(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
