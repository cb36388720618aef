package pubstatic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Change actions published by the authoring system.
const (
	ActionPublished   = "published"
	ActionUpdated     = "updated"
	ActionUnpublished = "unpublished"
	ActionDeleted     = "deleted"
)

// ChangeEvent announces that a post changed in the content store.
type ChangeEvent struct {
	Slug   string `json:"slug"`
	Action string `json:"action"`
}

// Revalidator is what change events drive.
type Revalidator interface {
	Revalidate(ctx context.Context, slug string) error
	RevalidateIndex(ctx context.Context) error
	Purge(ctx context.Context, slug string) error
}

// EventSubscriber turns change messages into on-demand revalidation.
type EventSubscriber struct {
	target  Revalidator
	logger  *slog.Logger
	timeout time.Duration

	conn *nats.Conn
	sub  *nats.Subscription
}

// NewEventSubscriber returns a subscriber that applies events to target.
func NewEventSubscriber(target Revalidator, logger *slog.Logger) *EventSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSubscriber{target: target, logger: logger, timeout: 30 * time.Second}
}

// Connect dials url and subscribes to subject.
func (s *EventSubscriber) Connect(url, subject string) error {
	conn, err := nats.Connect(url,
		nats.Name("pubstatic"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	sub, err := conn.Subscribe(subject, s.handle)
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.conn = conn
	s.sub = sub
	s.logger.Info("listening for post changes", "url", url, "subject", subject)
	return nil
}

func (s *EventSubscriber) handle(msg *nats.Msg) {
	var ev ChangeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		s.logger.Warn("ignoring malformed change event", "subject", msg.Subject, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Apply(ctx, ev); err != nil {
		s.logger.Warn("change event not fully applied", "slug", ev.Slug, "action", ev.Action, "error", err)
		return
	}
	s.logger.Info("applied change event", "slug", ev.Slug, "action", ev.Action)
}

// Apply regenerates or purges the article named by ev and then refreshes the
// listing pages. A failed article regeneration still refreshes the listing.
func (s *EventSubscriber) Apply(ctx context.Context, ev ChangeEvent) error {
	var errs []error
	switch ev.Action {
	case ActionPublished, ActionUpdated:
		if ev.Slug != "" {
			errs = append(errs, s.target.Revalidate(ctx, ev.Slug))
		}
	case ActionUnpublished, ActionDeleted:
		if ev.Slug != "" {
			errs = append(errs, s.target.Purge(ctx, ev.Slug))
		}
	default:
		return fmt.Errorf("unknown change action %q", ev.Action)
	}
	errs = append(errs, s.target.RevalidateIndex(ctx))
	return errors.Join(errs...)
}

// Close drains the subscription and closes the connection.
func (s *EventSubscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
