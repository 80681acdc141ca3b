// Package service holds the domain operations behind the HTTP handlers. Every
// operation that depends on the caller takes an explicit *auth.Session.
package service

import (
	"context"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
)

// EventPublisher receives change events after successful mutations.
type EventPublisher interface {
	PublishChange(ctx context.Context, ev notifications.ChangeEvent)
	PublishUser(ctx context.Context, userID uint, eventType string, payload map[string]any)
}

type noopEvents struct{}

func (noopEvents) PublishChange(context.Context, notifications.ChangeEvent)  {}
func (noopEvents) PublishUser(context.Context, uint, string, map[string]any) {}

func eventsOrNoop(e EventPublisher) EventPublisher {
	if e == nil {
		return noopEvents{}
	}
	return e
}

// AdminChecker reports whether a user is an administrator.
type AdminChecker func(ctx context.Context, userID uint) (bool, error)

func requireSession(session *auth.Session) error {
	if !session.Valid() {
		return models.NewUnauthorizedError("Authentication required")
	}
	return nil
}

// authorizeOwner allows the owner or an admin.
func authorizeOwner(ctx context.Context, session *auth.Session, ownerID uint, isAdmin AdminChecker, action string) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if session.Owns(ownerID) {
		return nil
	}
	if isAdmin != nil {
		admin, err := isAdmin(ctx, session.UserID)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return models.NewForbiddenError("Only the owner can " + action)
}
