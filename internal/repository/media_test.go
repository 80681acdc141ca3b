package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaRepository_ToggleLikeParity(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMediaRepository(db, newMemStore())
	ctx := context.Background()

	owner := createProfile(t, db, "owner")
	fan := createProfile(t, db, "fan")
	track := &models.Music{UserID: owner.ID, Title: "Night Drive", AudioURL: "https://x/a.mp3"}
	require.NoError(t, repo.Create(ctx, track))

	for n := 1; n <= 5; n++ {
		res, err := repo.ToggleLike(ctx, models.MediaMusic, track.ID, fan.ID)
		require.NoError(t, err)
		odd := n%2 == 1
		assert.Equal(t, odd, res.Liked, "toggle %d", n)
		if odd {
			assert.Equal(t, 1, res.LikesCount)
		} else {
			assert.Equal(t, 0, res.LikesCount)
		}
	}

	var rows int64
	db.Model(&models.MusicLike{}).Where("music_id = ?", track.ID).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestMediaRepository_SetLikeIsIdempotent(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMediaRepository(db, newMemStore())
	ctx := context.Background()

	owner := createProfile(t, db, "owner")
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")
	video := &models.Video{UserID: owner.ID, Title: "Waves", VideoURL: "https://x/v.mp4"}
	require.NoError(t, repo.Create(ctx, video))

	for i := 0; i < 3; i++ {
		res, err := repo.SetLike(ctx, models.MediaVideo, video.ID, a.ID, true)
		require.NoError(t, err)
		assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, res)
	}
	res, err := repo.SetLike(ctx, models.MediaVideo, video.ID, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LikesCount)

	for i := 0; i < 2; i++ {
		res, err = repo.SetLike(ctx, models.MediaVideo, video.ID, a.ID, false)
		require.NoError(t, err)
		assert.Equal(t, models.LikeResult{Liked: false, LikesCount: 1}, res)
	}
}

func TestMediaRepository_LikeMissingItem(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMediaRepository(db, newMemStore())
	fan := createProfile(t, db, "fan")

	_, err := repo.ToggleLike(context.Background(), models.MediaImage, 999, fan.ID)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestMediaRepository_ListSortsAndMarksLiked(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMediaRepository(db, newMemStore())
	ctx := context.Background()

	alice := createProfile(t, db, "alice")
	bob := createProfile(t, db, "bob")
	base := time.Now().Add(-time.Hour)
	images := []*models.Image{
		{UserID: alice.ID, Title: "first", ImageURL: "u1", CreatedAt: base},
		{UserID: bob.ID, Title: "second", ImageURL: "u2", CreatedAt: base.Add(time.Minute)},
		{UserID: alice.ID, Title: "third", ImageURL: "u3", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, img := range images {
		require.NoError(t, repo.Create(ctx, img))
	}
	_, err := repo.ToggleLike(ctx, models.MediaImage, images[0].ID, bob.ID)
	require.NoError(t, err)

	titles := func(items []models.MediaItem) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.(*models.Image).Title
		}
		return out
	}

	newest, err := repo.List(ctx, models.MediaImage, ListOptions{Sort: SortNewest, ViewerID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, titles(newest))
	assert.True(t, newest[2].(*models.Image).Liked)
	assert.False(t, newest[0].(*models.Image).Liked)
	require.NotNil(t, newest[0].(*models.Image).Owner)
	assert.Equal(t, "alice", newest[0].(*models.Image).Owner.Username)

	oldest, err := repo.List(ctx, models.MediaImage, ListOptions{Sort: SortOldest})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, titles(oldest))

	top, err := repo.List(ctx, models.MediaImage, ListOptions{Sort: SortMostLiked, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, titles(top))

	mine, err := repo.List(ctx, models.MediaImage, ListOptions{UserID: alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "first"}, titles(mine))

	n, err := repo.Count(ctx, models.MediaImage)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMediaRepository_DeleteRemovesRowLikesCommentsAndFiles(t *testing.T) {
	db := setupSQLiteDB(t)
	store := newMemStore()
	repo := NewMediaRepository(db, store)
	ctx := context.Background()

	owner := createProfile(t, db, "owner")
	fan := createProfile(t, db, "fan")
	_, err := store.Put(ctx, "images", "1/100.jpg", strings.NewReader("jpg"), "image/jpeg")
	require.NoError(t, err)

	img := &models.Image{
		UserID: owner.ID, Title: "sunset", ImageURL: "u",
		StoragePath: "1/100.jpg", ThumbnailPath: "1/100_thumb.webp",
	}
	require.NoError(t, repo.Create(ctx, img))
	_, err = repo.ToggleLike(ctx, models.MediaImage, img.ID, fan.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ImageComment{ImageID: img.ID, UserID: fan.ID, Content: "nice"}).Error)

	// The thumbnail was never written; a missing file does not block the delete.
	require.NoError(t, repo.Delete(ctx, img))

	assert.False(t, store.has("images", "1/100.jpg"))
	var n int64
	db.Model(&models.Image{}).Where("id = ?", img.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.ImageLike{}).Where("image_id = ?", img.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.ImageComment{}).Where("image_id = ?", img.ID).Count(&n)
	assert.Zero(t, n)

	err = repo.Delete(ctx, img)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestMediaRepository_DeleteRollsBackOnStorageError(t *testing.T) {
	db := setupSQLiteDB(t)
	store := newMemStore()
	store.removeErr = errors.New("bucket unavailable")
	repo := NewMediaRepository(db, store)
	ctx := context.Background()

	owner := createProfile(t, db, "owner")
	track := &models.Music{UserID: owner.ID, Title: "t", AudioURL: "u", StoragePath: "1/1.mp3"}
	require.NoError(t, repo.Create(ctx, track))

	err := repo.Delete(ctx, track)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeRemoteCallFailed))

	var n int64
	db.Model(&models.Music{}).Where("id = ?", track.ID).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestMediaRepository_UpdateDetails(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMediaRepository(db, newMemStore())
	ctx := context.Background()

	owner := createProfile(t, db, "owner")
	video := &models.Video{UserID: owner.ID, Title: "old", VideoURL: "u"}
	require.NoError(t, repo.Create(ctx, video))

	desc := "new description"
	require.NoError(t, repo.UpdateDetails(ctx, video, "new", &desc))

	got, err := repo.GetByID(ctx, models.MediaVideo, video.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "new", got.(*models.Video).Title)
	assert.Equal(t, "new description", *got.(*models.Video).Description)
}
