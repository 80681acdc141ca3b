package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"
)

// LocalStore keeps objects under <root>/<bucket>/<path> and serves them below baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the bucket directories under root.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	for _, b := range []string{BucketImages, BucketVideos, BucketMusic} {
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bucket dir %s: %w", b, err)
		}
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Driver() string { return "local" }

// Root is the directory served as static files.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) filePath(bucket, objectPath string) (string, string, error) {
	if err := validBucket(bucket); err != nil {
		return "", "", err
	}
	cleaned, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(cleaned)), cleaned, nil
}

func (s *LocalStore) Put(ctx context.Context, bucket, objectPath string, body io.Reader, _ string) (obj Object, err error) {
	defer func() {
		observability.StorageOperations.WithLabelValues("local", "put", observability.Outcome(err)).Inc()
	}()
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	full, cleaned, err := s.filePath(bucket, objectPath)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return Object{}, err
	}

	return Object{Bucket: bucket, Path: cleaned, URL: s.PublicURL(bucket, cleaned), Size: n}, nil
}

func (s *LocalStore) Remove(ctx context.Context, bucket, objectPath string) (err error) {
	defer func() {
		observability.StorageOperations.WithLabelValues("local", "remove", observability.Outcome(err)).Inc()
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	full, _, err := s.filePath(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *LocalStore) PublicURL(bucket, objectPath string) string {
	return s.baseURL + "/" + bucket + "/" + strings.TrimPrefix(objectPath, "/")
}
