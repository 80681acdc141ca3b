package testutil

import (
	"context"
	"sync"

	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
)

// UserEvent is one event recorded by EventRecorder.PublishUser.
type UserEvent struct {
	UserID  uint
	Type    string
	Payload map[string]any
}

// EventRecorder captures published events for assertions.
type EventRecorder struct {
	mu      sync.Mutex
	Changes []notifications.ChangeEvent
	Users   []UserEvent
}

func (r *EventRecorder) PublishChange(_ context.Context, ev notifications.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Changes = append(r.Changes, ev)
}

func (r *EventRecorder) PublishUser(_ context.Context, userID uint, eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Users = append(r.Users, UserEvent{UserID: userID, Type: eventType, Payload: payload})
}

// ChangeTypes lists the recorded change event types in order.
func (r *EventRecorder) ChangeTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Changes))
	for i, ev := range r.Changes {
		out[i] = ev.Type
	}
	return out
}

// UserTypes lists the recorded user event types in order.
func (r *EventRecorder) UserTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Users))
	for i, ev := range r.Users {
		out[i] = ev.Type
	}
	return out
}
