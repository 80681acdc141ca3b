package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndRemove(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "http://localhost:8375/storage/")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := store.Put(ctx, BucketVideos, "7/1700000000000.mp4", strings.NewReader("video-bytes"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "7/1700000000000.mp4", obj.Path)
	assert.Equal(t, int64(len("video-bytes")), obj.Size)
	assert.Equal(t, "http://localhost:8375/storage/videos/7/1700000000000.mp4", obj.URL)

	data, err := os.ReadFile(filepath.Join(root, "videos", "7", "1700000000000.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	require.NoError(t, store.Remove(ctx, BucketVideos, obj.Path))
	err = store.Remove(ctx, BucketVideos, obj.Path)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, RemoveIgnoringMissing(ctx, store, BucketVideos, obj.Path))
}

func TestLocalStore_RejectsBadPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name   string
		bucket string
		path   string
	}{
		{"parent traversal", BucketImages, "../etc/passwd"},
		{"nested traversal", BucketImages, "7/../../secret"},
		{"empty path", BucketImages, "  "},
		{"unknown bucket", "private", "7/a.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Put(ctx, tt.bucket, tt.path, strings.NewReader("x"), "")
			assert.Error(t, err)
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, BucketMusic, "1/a.mp3", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}
