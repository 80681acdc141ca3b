// Package storage stores uploaded and generated media files in named buckets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
)

// Bucket names used by the gallery.
const (
	BucketImages = "images"
	BucketVideos = "videos"
	BucketMusic  = "music"
)

// ErrNotFound is returned when the addressed object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Object describes a stored file.
type Object struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Size   int64  `json:"size"`
}

// Store is implemented by the local disk and S3 drivers.
type Store interface {
	Put(ctx context.Context, bucket, objectPath string, body io.Reader, contentType string) (Object, error)
	Remove(ctx context.Context, bucket, objectPath string) error
	PublicURL(bucket, objectPath string) string
	Driver() string
}

// New builds the store selected by STORAGE_DRIVER.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL+"/storage")
	case "s3":
		return NewS3Store(S3Options{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			BucketPrefix: cfg.S3BucketPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// RemoveIgnoringMissing removes an object and treats a missing one as success.
func RemoveIgnoringMissing(ctx context.Context, s Store, bucket, objectPath string) error {
	if err := s.Remove(ctx, bucket, objectPath); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// cleanObjectPath rejects absolute paths and parent traversal.
func cleanObjectPath(objectPath string) (string, error) {
	p := strings.TrimSpace(objectPath)
	if p == "" {
		return "", errors.New("storage: empty object path")
	}
	cleaned := path.Clean("/" + p)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(p, "/") || strings.Contains(p, "..") {
		return "", fmt.Errorf("storage: invalid object path %q", objectPath)
	}
	return cleaned, nil
}

func validBucket(bucket string) error {
	switch bucket {
	case BucketImages, BucketVideos, BucketMusic:
		return nil
	}
	return fmt.Errorf("storage: unknown bucket %q", bucket)
}
