package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aslbekqoziboyev/aiverselabs/internal/messaging"
	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"
)

// eventFanout delivers every change through exactly one realtime path: Redis
// pub/sub when it is available (every instance's hub, this one included,
// receives it from the subscriber), otherwise straight to the local hub.
// Events are also exported to NATS when configured.
type eventFanout struct {
	notifier  *notifications.Notifier
	hub       *notifications.Hub
	publisher *messaging.Publisher
}

func newEventFanout(n *notifications.Notifier, hub *notifications.Hub, p *messaging.Publisher) *eventFanout {
	return &eventFanout{notifier: n, hub: hub, publisher: p}
}

func (f *eventFanout) PublishChange(ctx context.Context, ev notifications.ChangeEvent) {
	observability.ChangeEventsPublished.WithLabelValues(ev.Table, ev.Action).Inc()

	delivered := false
	if f.notifier.Enabled() {
		if err := f.notifier.PublishChange(ctx, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
				slog.String("type", ev.Type), slog.String("error", err.Error()))
		} else {
			delivered = true
		}
	}
	if !delivered && f.hub != nil {
		f.hub.DeliverChange(ev)
	}

	if err := f.publisher.PublishChange(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "nats export failed",
			slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}

func (f *eventFanout) PublishUser(ctx context.Context, userID uint, eventType string, payload map[string]any) {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal user event",
			slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}
	msg := string(data)

	delivered := false
	if f.notifier.Enabled() {
		if err := f.notifier.PublishUser(ctx, userID, msg); err != nil {
			middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
				slog.String("type", eventType), slog.String("error", err.Error()))
		} else {
			delivered = true
		}
	}
	if !delivered && f.hub != nil {
		f.hub.Broadcast(userID, msg)
	}

	if err := f.publisher.PublishUserEvent(ctx, userID, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "nats export failed",
			slog.String("type", eventType), slog.String("error", err.Error()))
	}
}
