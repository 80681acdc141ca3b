package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"
	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
	"github.com/aslbekqoziboyev/aiverselabs/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret   = "test-secret-that-is-at-least-32-characters"
	testPassword = "Sup3r$ecret!42"
)

// testEnv is a fully wired server backed by SQLite, miniredis and an in-memory store.
type testEnv struct {
	srv   *Server
	app   *fiber.App
	db    *gorm.DB
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *testutil.MemStore
}

func newTestEnv(t *testing.T, tweak ...func(cfg *config.Config, opts *Options)) *testEnv {
	t.Helper()
	db := testutil.SQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	cfg := &config.Config{
		Env:             "test",
		Port:            "0",
		JWTSecret:       testSecret,
		AllowedOrigins:  "http://localhost:5173",
		FeatureFlags:    "image_generation=on,video_generation=on,music_generation=off",
		StorageDriver:   "memory",
		MaxUploadSizeMB: 5,
		AvatarMaxSizeMB: 1,
	}
	store := testutil.NewMemStore()
	opts := Options{Store: store, Fetcher: storage.NewFetcher(10*time.Second, 5<<20, storage.AllowPrivateNetworks())}
	for _, fn := range tweak {
		fn(cfg, &opts)
	}

	srv, err := NewServerWithDeps(cfg, db, rdb, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.generationService.Shutdown(ctx)
		_ = rdb.Close()
	})

	return &testEnv{srv: srv, app: srv.App(), db: db, mr: mr, rdb: rdb, store: store}
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string) (int, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// signup registers username and returns its token and profile id.
func (e *testEnv) signup(t *testing.T, username string) (string, uint) {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	}, "")
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	var out struct {
		Token   string `json:"token"`
		Profile struct {
			ID uint `json:"id"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.Profile.ID
}

// user inserts a profile directly and issues a token for it. Signup is rate
// limited, so tests that need several users go through here.
func (e *testEnv) user(t *testing.T, username string, admin bool) (string, *models.Profile) {
	t.Helper()
	p := testutil.CreateProfile(t, e.db, username, admin)
	token, _, err := e.srv.tokens.Issue(p.ID, p.Username, p.Email)
	require.NoError(t, err)
	return token, p
}

func (e *testEnv) makeAdmin(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, e.db.Exec("UPDATE profiles SET is_admin = ? WHERE id = ?", true, id).Error)
}

// multipartRequest builds a form with one file field and plain values.
func multipartRequest(t *testing.T, path, field, filename string, content []byte, values map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, raw := env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusOK, status, string(raw))
	body := decode[map[string]any](t, raw)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["storage"])

	env.mr.Close()
	status, raw = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	checks := decode[map[string]any](t, raw)["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["redis"])
}

func TestAuthRequired_Rejects(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			status, raw := env.send(t, req, "")
			assert.Equal(t, fiber.StatusUnauthorized, status)
			assert.Contains(t, string(raw), "UNAUTHORIZED")
		})
	}
}
