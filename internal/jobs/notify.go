package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/internal/events"
)

// NotifyHandler publishes the job payload, an events.Notification, through
// pub. Publish errors are returned so the pool retries with backoff.
func NotifyHandler(pub events.Publisher) Handler {
	return func(ctx context.Context, j *Job) error {
		var n events.Notification
		if err := json.Unmarshal(j.Payload, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		return pub.Publish(ctx, n)
	}
}

// Handlers returns the handler map for every notification job type.
func Handlers(pub events.Publisher) map[string]Handler {
	h := NotifyHandler(pub)
	return map[string]Handler{
		TypeNotifyBooking:      h,
		TypeNotifySubscription: h,
		TypeNotifyContact:      h,
	}
}

// Notify schedules a notification job. Failures are logged and swallowed:
// the request that triggered the notification has already succeeded.
func Notify(ctx context.Context, q Enqueuer, logger *slog.Logger, jobType string, n events.Notification) {
	if q == nil {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	if _, err := q.Enqueue(ctx, jobType, n, 100, 0); err != nil {
		logger.ErrorContext(ctx, "enqueue notification", slog.String("type", n.Type), slog.Any("err", err))
	}
}
