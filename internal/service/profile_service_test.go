package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
	"github.com/aslbekqoziboyev/aiverselabs/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProfileService_UpdateMe(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateProfile(t, f.db, "alice", false)
	testutil.CreateProfile(t, f.db, "bob", false)
	svc := NewProfileService(f.profiles, f.store, f.events, 0)
	ctx := context.Background()

	updated, err := svc.UpdateMe(ctx, sessionFor(alice), UpdateProfileInput{
		Username: strPtr(" alice_w "),
		FullName: strPtr(" Alice Wonder "),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice_w", updated.Username)
	assert.Equal(t, "Alice Wonder", updated.FullName)
	assert.Equal(t, []string{notifications.EventProfileUpdated}, f.events.ChangeTypes())

	_, err = svc.UpdateMe(ctx, sessionFor(alice), UpdateProfileInput{Username: strPtr("bob")})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = svc.UpdateMe(ctx, sessionFor(alice), UpdateProfileInput{Username: strPtr("no spaces allowed")})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = svc.UpdateMe(ctx, nil, UpdateProfileInput{FullName: strPtr("x")})
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	me, err := svc.Me(ctx, sessionFor(alice))
	require.NoError(t, err)
	assert.Equal(t, "alice_w", me.Username)
}

func TestProfileService_UploadAvatar(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateProfile(t, f.db, "alice", false)
	svc := NewProfileService(f.profiles, f.store, f.events, 1)
	tick := time.UnixMilli(1_700_000_000_000)
	svc.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	ctx := context.Background()
	png := testutil.TinyPNG(t, 16, 16)

	first, err := svc.UploadAvatar(ctx, sessionFor(alice), AvatarInput{Filename: "me.png", ContentType: "image/png", Content: png})
	require.NoError(t, err)
	firstPath := first.AvatarPath
	assert.True(t, strings.HasPrefix(firstPath, "avatars/"))
	assert.True(t, strings.HasSuffix(firstPath, ".png"))
	assert.True(t, f.store.Has(storage.BucketImages, firstPath))
	assert.Equal(t, f.store.PublicURL(storage.BucketImages, firstPath), first.AvatarURL)

	second, err := svc.UploadAvatar(ctx, sessionFor(alice), AvatarInput{Filename: "me2.png", Content: png})
	require.NoError(t, err)
	assert.NotEqual(t, firstPath, second.AvatarPath)
	assert.False(t, f.store.Has(storage.BucketImages, firstPath))
	assert.True(t, f.store.Has(storage.BucketImages, second.AvatarPath))
}

func TestProfileService_UploadAvatar_LogsFailedCleanup(t *testing.T) {
	var logs bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	t.Cleanup(func() { middleware.Logger = prev })

	f := newFixture(t)
	alice := testutil.CreateProfile(t, f.db, "alice", false)
	svc := NewProfileService(f.profiles, f.store, f.events, 1)
	tick := time.UnixMilli(1_700_000_000_000)
	svc.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	ctx := context.Background()
	png := testutil.TinyPNG(t, 16, 16)

	first, err := svc.UploadAvatar(ctx, sessionFor(alice), AvatarInput{Filename: "me.png", Content: png})
	require.NoError(t, err)
	firstPath := first.AvatarPath

	f.store.RemoveErr = errors.New("bucket unavailable")
	second, err := svc.UploadAvatar(ctx, sessionFor(alice), AvatarInput{Filename: "me2.png", Content: png})
	require.NoError(t, err, "a stale file does not fail the upload")
	assert.NotEqual(t, firstPath, second.AvatarPath)

	assert.Contains(t, logs.String(), "failed to remove orphaned file")
	assert.Contains(t, logs.String(), firstPath)
	assert.Contains(t, logs.String(), "bucket unavailable")
}

func TestProfileService_UploadAvatar_Rejects(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateProfile(t, f.db, "alice", false)
	svc := NewProfileService(f.profiles, f.store, f.events, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		in   AvatarInput
	}{
		{"empty", AvatarInput{}},
		{"too large", AvatarInput{ContentType: "image/png", Content: bytes.Repeat([]byte{1}, 1<<20+1)}},
		{"text content", AvatarInput{ContentType: "image/png", Content: []byte("definitely not an image")}},
		{"declared non-image", AvatarInput{ContentType: "application/pdf", Content: testutil.TinyPNG(t, 4, 4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadAvatar(ctx, sessionFor(alice), tt.in)
			assert.Equal(t, http.StatusBadRequest, statusOf(err))
		})
	}
	assert.Zero(t, f.store.Len())
}

func TestProfileService_ListFilters(t *testing.T) {
	f := newFixture(t)
	testutil.CreateProfile(t, f.db, "painter", false)
	testutil.CreateProfile(t, f.db, "composer", false)
	svc := NewProfileService(f.profiles, f.store, f.events, 0)

	all, err := svc.List(context.Background(), "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := svc.List(context.Background(), "PAINT", 20, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "painter", found[0].Username)

	_, err = svc.Get(context.Background(), 999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
