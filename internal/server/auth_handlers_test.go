package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupLoginSessionLogout(t *testing.T) {
	env := newTestEnv(t)

	token, id := env.signup(t, "alice")
	assert.NotZero(t, id)

	status, raw := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "alice2",
		"email":    "ALICE@example.com",
		"password": testPassword,
	}, "")
	assert.Equal(t, fiber.StatusConflict, status, string(raw))

	status, _ = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Wr0ng$password",
	}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, raw = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    " Alice@Example.com ",
		"password": testPassword,
	}, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	login := decode[map[string]any](t, raw)
	assert.NotEmpty(t, login["token"])
	profile := login["profile"].(map[string]any)
	assert.Equal(t, "alice", profile["username"])
	assert.NotContains(t, profile, "password")

	status, raw = env.do(t, http.MethodGet, "/api/auth/session", nil, token)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	session := decode[map[string]any](t, raw)
	assert.Equal(t, float64(id), session["session"].(map[string]any)["user_id"])
	assert.Equal(t, "alice", session["profile"].(map[string]any)["username"])

	status, _ = env.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, fiber.StatusOK, status)

	status, raw = env.do(t, http.MethodGet, "/api/auth/session", nil, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, string(raw), "Token has been revoked")
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"username": "carol", "email": "nope", "password": testPassword}},
		{"short username", map[string]string{"username": "c", "email": "c@example.com", "password": testPassword}},
		{"weak password", map[string]string{"username": "carol", "email": "c@example.com", "password": "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := env.do(t, http.MethodPost, "/api/auth/signup", tt.body, "")
			assert.Equal(t, fiber.StatusBadRequest, status, string(raw))
			assert.Contains(t, string(raw), "VALIDATION_ERROR")
		})
	}
}

func TestWSTicket_IsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	token, p := env.user(t, "dave", false)

	status, raw := env.do(t, http.MethodPost, "/api/ws/ticket", nil, token)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	ticket := decode[map[string]any](t, raw)["ticket"].(string)
	require.NotEmpty(t, ticket)

	stored, err := env.mr.Get(cache.WSTicketKey(ticket))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(p.ID), 10), stored)
	assert.Equal(t, cache.WSTicketTTL, env.mr.TTL(cache.WSTicketKey(ticket)))

	// A plain GET authenticates with the ticket and then fails the upgrade check.
	status, _ = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
	assert.False(t, env.mr.Exists(cache.WSTicketKey(ticket)))

	status, raw = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, string(raw), "Invalid or expired WebSocket ticket")
}

func TestWS_RequiresTicketNotBearer(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.user(t, "erin", false)

	req := httptest.NewRequest(http.MethodGet, "/api/ws?ticket=unknown", nil)
	status, _ := env.send(t, req, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
