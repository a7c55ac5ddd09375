package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const EventUserDeleted = "user_deleted"

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// CrewDetacher removes a delivery crew member from the orders they hold.
type CrewDetacher interface {
	DetachDeliveryCrew(ctx context.Context, crewID uuid.UUID) (int64, error)
}

type userEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	// Older identity service builds publish the id under this key.
	LegacyUserID string `json:"UserID"`
}

// UserEventsConsumer reacts to account lifecycle events of the identity
// service.
type UserEventsConsumer struct {
	Reader MessageReader
	Orders CrewDetacher
	Log    *slog.Logger

	// RetryBackoff is the first delay before a failed message is handled
	// again. It doubles up to maxRetryBackoff.
	RetryBackoff time.Duration
}

// HandleMessage applies a single user event. Events of other types and
// malformed payloads are skipped.
func (c *UserEventsConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var ev userEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger().Warn("user_event_decode_error", "offset", msg.Offset, "error", err)
		return nil
	}
	if ev.Type != EventUserDeleted {
		return nil
	}

	raw := ev.UserID
	if raw == "" {
		raw = ev.LegacyUserID
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.logger().Warn("user_event_decode_error", "offset", msg.Offset, "reason", "bad user id", "error", err)
		return nil
	}

	n, err := c.Orders.DetachDeliveryCrew(ctx, userID)
	if err != nil {
		return fmt.Errorf("detach delivery crew %s: %w", userID, err)
	}
	c.logger().Info("delivery_crew_detached", "user_id", userID, "orders", n)
	return nil
}

// Run consumes until ctx is cancelled. A message is committed only after it
// was handled. A failing message is retried with backoff and blocks the
// partition, committing past it would drop it for the whole group.
func (c *UserEventsConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch user event: %w", err)
		}

		if !c.handleWithRetry(ctx, msg) {
			return nil
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger().Error("user_event_commit_error", "offset", msg.Offset, "error", err)
		}
	}
}

// handleWithRetry reports false when ctx ended before msg was handled.
func (c *UserEventsConsumer) handleWithRetry(ctx context.Context, msg kafka.Message) bool {
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	for attempt := 1; ; attempt++ {
		err := c.HandleMessage(ctx, msg)
		if err == nil {
			return true
		}
		c.logger().Error("user_event_handle_error", "offset", msg.Offset, "attempt", attempt, "retry_in", backoff.String(), "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (c *UserEventsConsumer) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
