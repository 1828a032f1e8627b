// Package events publishes user-facing notifications (booking requests,
// status changes, subscription changes, contact requests) to a message broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeSubscriptionChanged  = "subscription.changed"
	TypeContactRequested     = "contact.requested"
)

// Notification is the message body consumers receive. Recipients are profile
// ids.
type Notification struct {
	Type       string    `json:"type"`
	BookingID  int64     `json:"booking_id,omitempty"`
	ProfileID  int64     `json:"profile_id,omitempty"`
	Recipients []int64   `json:"recipients"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

// LogPublisher writes notifications to the log. Used when no broker is
// configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "notification", slog.String("type", n.Type), slog.String("body", string(body)))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
