// Package messaging exports domain events to NATS for downstream consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to every exported subject.
const SubjectPrefix = "aiverselabs"

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher sends events to NATS. A nil Publisher drops everything.
type Publisher struct {
	nc  conn
	raw *nats.Conn
}

// Connect dials url. An empty url returns a nil Publisher.
func Connect(url string) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("aiverselabs-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				middleware.Logger.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			middleware.Logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	middleware.Logger.Info("NATS connected successfully", slog.String("url", nc.ConnectedUrl()))
	return &Publisher{nc: nc, raw: nc}, nil
}

func newPublisher(c conn) *Publisher {
	return &Publisher{nc: c}
}

// Subject maps an event type such as "media_liked" to "aiverselabs.media.liked".
func Subject(eventType string) string {
	return SubjectPrefix + "." + strings.Replace(eventType, "_", ".", 1)
}

// Envelope is the payload of every exported message.
type Envelope struct {
	Type      string    `json:"type"`
	Table     string    `json:"table,omitempty"`
	Action    string    `json:"action,omitempty"`
	RecordID  uint      `json:"record_id,omitempty"`
	UserID    uint      `json:"user_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishChange exports a row change.
func (p *Publisher) PublishChange(_ context.Context, ev notifications.ChangeEvent) error {
	return p.publish(Envelope{
		Type:     ev.Type,
		Table:    ev.Table,
		Action:   ev.Action,
		RecordID: ev.RecordID,
		UserID:   ev.UserID,
		Payload:  ev.Record,
	})
}

// PublishUserEvent exports an event addressed to one user.
func (p *Publisher) PublishUserEvent(_ context.Context, userID uint, eventType string, payload any) error {
	return p.publish(Envelope{Type: eventType, UserID: userID, Payload: payload})
}

func (p *Publisher) publish(env Envelope) error {
	if p == nil || p.nc == nil {
		return nil
	}
	env.Timestamp = time.Now().UTC()
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(env.Type), data)
}

// Subscribe delivers every exported event to handler. It needs a real connection.
func (p *Publisher) Subscribe(handler func(subject string, env Envelope)) (*nats.Subscription, error) {
	if p == nil || p.raw == nil {
		return nil, fmt.Errorf("messaging: not connected")
	}
	return p.raw.Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			middleware.Logger.Warn("invalid event on NATS", slog.String("subject", msg.Subject), slog.Any("error", err))
			return
		}
		handler(msg.Subject, env)
	})
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
