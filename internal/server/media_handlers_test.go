package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
	"github.com/aslbekqoziboyev/aiverselabs/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) uploadImage(t *testing.T, token, title string, tags ...string) map[string]any {
	t.Helper()
	req := multipartRequest(t, "/api/images", "image", "photo.png", testutil.TinyPNG(t, 64, 48), map[string][]string{
		"title": {title},
		"tags":  tags,
	})
	status, raw := e.send(t, req, token)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	return decode[map[string]any](t, raw)
}

func TestImages_UploadLikeAndDelete(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, alice := env.user(t, "alice", false)
	bobToken, _ := env.user(t, "bob", false)

	img := env.uploadImage(t, aliceToken, "Golden hour", "sunset, #Art")
	id := uint(img["id"].(float64))
	assert.Equal(t, float64(alice.ID), img["user_id"])
	assert.ElementsMatch(t, []any{"sunset", "Art"}, img["tags"])
	assert.Equal(t, 2, env.store.Len(), "master and thumbnail")
	assert.Equal(t, "image/jpeg", env.store.ContentType(storage.BucketImages, img["storage_path"].(string)))

	status, raw := env.do(t, http.MethodGet, "/api/images?q=%23art", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, raw), 1)

	status, raw = env.do(t, http.MethodGet, "/api/images?q=landscape", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]map[string]any](t, raw))

	likePath := fmt.Sprintf("/api/images/%d/like", id)
	status, raw = env.do(t, http.MethodPost, likePath, nil, bobToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, decode[models.LikeResult](t, raw))

	status, raw = env.do(t, http.MethodPut, likePath, nil, bobToken)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, decode[models.LikeResult](t, raw))

	status, raw = env.do(t, http.MethodGet, "/api/images", nil, bobToken)
	require.Equal(t, fiber.StatusOK, status)
	listed := decode[[]map[string]any](t, raw)
	require.Len(t, listed, 1)
	assert.Equal(t, true, listed[0]["liked"])
	assert.Equal(t, float64(1), listed[0]["likes_count"])

	status, _ = env.do(t, http.MethodPost, likePath, nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	itemPath := fmt.Sprintf("/api/images/%d", id)
	status, raw = env.do(t, http.MethodDelete, itemPath, nil, bobToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Contains(t, string(raw), "Only the owner can delete this image")
	assert.Equal(t, 2, env.store.Len())

	status, _ = env.do(t, http.MethodDelete, itemPath, nil, aliceToken)
	require.Equal(t, fiber.StatusOK, status)
	assert.Zero(t, env.store.Len())

	status, _ = env.do(t, http.MethodGet, itemPath, nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestImages_UploadRejections(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.user(t, "carol", false)

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/images", nil)
		status, raw := env.send(t, req, token)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Contains(t, string(raw), "Image file is required")
	})
	t.Run("missing tags", func(t *testing.T) {
		req := multipartRequest(t, "/api/images", "image", "a.png", testutil.TinyPNG(t, 8, 8),
			map[string][]string{"title": {"No tags"}})
		status, _ := env.send(t, req, token)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
	t.Run("not an image", func(t *testing.T) {
		req := multipartRequest(t, "/api/images", "image", "a.png", []byte("plain text"),
			map[string][]string{"title": {"Text"}, "tags": {"x"}})
		status, _ := env.send(t, req, token)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
	assert.Zero(t, env.store.Len())
}

func TestMedia_ListValidation(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/api/music?sort=random", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(raw), "sort must be one of")

	status, raw = env.do(t, http.MethodGet, "/api/videos/abc", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(raw), "Invalid ID")

	status, _ = env.do(t, http.MethodGet, "/api/videos?sort=most-liked", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestMedia_PublishMusicAndListMine(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(testutil.FakeMP3())
	}))
	t.Cleanup(provider.Close)

	env := newTestEnv(t)
	token, owner := env.user(t, "dana", false)
	otherToken, _ := env.user(t, "eve", false)

	status, raw := env.do(t, http.MethodPost, "/api/music/publish", map[string]any{
		"title":      "Night drive",
		"prompt":     "synthwave",
		"source_url": provider.URL + "/song.mp3",
		"cover_url":  "https://cdn.example.com/cover.png",
	}, token)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	song := decode[map[string]any](t, raw)
	assert.Equal(t, "https://cdn.example.com/cover.png", song["image_url"])
	assert.Nil(t, song["description"])
	assert.True(t, env.store.Has(storage.BucketMusic, song["storage_path"].(string)))

	status, raw = env.do(t, http.MethodPost, "/api/music/publish", map[string]any{"title": "No source"}, token)
	assert.Equal(t, fiber.StatusBadRequest, status, string(raw))

	status, raw = env.do(t, http.MethodGet, "/api/me/music", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	mine := decode[[]map[string]any](t, raw)
	require.Len(t, mine, 1)
	assert.Equal(t, float64(owner.ID), mine[0]["user_id"])

	status, raw = env.do(t, http.MethodGet, "/api/me/music", nil, otherToken)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]map[string]any](t, raw))

	status, _ = env.do(t, http.MethodGet, "/api/me/podcasts", nil, token)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestMedia_UpdateDetails(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, owner := env.user(t, "fay", false)
	strangerToken, _ := env.user(t, "gus", false)
	video := &models.Video{UserID: owner.ID, Title: "Draft", VideoURL: "https://files.example.com/videos/1.mp4"}
	require.NoError(t, env.db.Create(video).Error)
	path := fmt.Sprintf("/api/videos/%d", video.ID)

	status, _ := env.do(t, http.MethodPatch, path, map[string]string{"title": "Stolen"}, strangerToken)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw := env.do(t, http.MethodPatch, path, map[string]string{"title": "  Final cut ", "description": "  "}, ownerToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	updated := decode[map[string]any](t, raw)
	assert.Equal(t, "Final cut", updated["title"])
	assert.Nil(t, updated["description"])
}

func TestMedia_PublicResponsesHideOwnerEmail(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.user(t, "alice", false)
	img := env.uploadImage(t, aliceToken, "Harbor", "boats")
	id := uint(img["id"].(float64))

	status, raw := env.do(t, http.MethodPost, fmt.Sprintf("/api/images/%d/comments", id),
		map[string]string{"content": "Lovely"}, aliceToken)
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	ownerOf := func(row map[string]any, key string) map[string]any {
		t.Helper()
		p, ok := row[key].(map[string]any)
		require.True(t, ok, "%s missing in %v", key, row)
		return p
	}
	assertPublic := func(p map[string]any) {
		t.Helper()
		assert.Equal(t, "alice", p["username"])
		assert.NotContains(t, p, "email")
		assert.NotContains(t, p, "is_admin")
	}

	status, raw = env.do(t, http.MethodGet, "/api/images", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	listed := decode[[]map[string]any](t, raw)
	require.Len(t, listed, 1)
	assertPublic(ownerOf(listed[0], "owner"))

	status, raw = env.do(t, http.MethodGet, fmt.Sprintf("/api/images/%d", id), nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assertPublic(ownerOf(decode[map[string]any](t, raw), "owner"))

	status, raw = env.do(t, http.MethodGet, fmt.Sprintf("/api/images/%d/comments", id), nil, "")
	require.Equal(t, fiber.StatusOK, status)
	comments := decode[[]map[string]any](t, raw)
	require.Len(t, comments, 1)
	assertPublic(ownerOf(comments[0], "author"))
}

func TestMedia_PublishRejectsLoopbackSource(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(testutil.FakeMP3())
	}))
	t.Cleanup(internal.Close)

	env := newTestEnv(t, func(_ *config.Config, opts *Options) { opts.Fetcher = nil })
	token, _ := env.user(t, "mallory", false)

	status, raw := env.do(t, http.MethodPost, "/api/music/publish", map[string]any{
		"title":      "Exfil",
		"source_url": internal.URL + "/song.mp3",
	}, token)
	assert.Equal(t, fiber.StatusBadRequest, status, string(raw))
	assert.Contains(t, string(raw), "source_url must point to a public host")
	assert.Zero(t, env.store.Len())
}
