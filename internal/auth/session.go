// Package auth issues and parses bearer tokens and carries the per-request Session.
package auth

import (
	"context"
	"time"
)

// Session is the authenticated identity of one request. Handlers build it once
// and pass it explicitly to every service call that needs to know the caller.
type Session struct {
	UserID    uint      `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session identifies a user.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != 0
}

// Owns reports whether the session user owns a resource.
func (s *Session) Owns(ownerID uint) bool {
	return s.Valid() && s.UserID == ownerID
}

type sessionKey struct{}

// WithSession stores s in ctx for code paths that are not handed the session directly.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s.Valid()
}
