package profiles

import (
	"context"
	"log/slog"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/internal/events"
	"github.com/VYBRANDMEDIA/nannygo/internal/jobs"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

// Payment provider event types the manager reacts to.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	checkoutModeSubscription  = "subscription"
	outcomeApplied            = "applied"
	outcomeStale              = "stale"
	outcomeIgnored            = "ignored"
	outcomeUnresolved         = "unresolved"
)

// SubscriptionEvent is a verified payment provider event reduced to the
// fields subscription state depends on. CreatedAt is the provider's event
// time; zero means unknown.
type SubscriptionEvent struct {
	ID              string
	Type            string
	CreatedAt       time.Time
	Mode            string // checkout sessions only
	CustomerRef     string
	SubscriptionRef string
	ProviderStatus  string
	TrialEndsAt     *time.Time
	ProfileID       int64 // from provider metadata, 0 when absent
}

// ApplySubscriptionEvent folds one provider event into the nanny's
// subscription state. Events are resolved by subscription reference; the
// metadata profile id is only trusted for checkout completion and for
// subscriptions no profile is bound to yet. Events older than the stored
// one are skipped, so replays and out-of-order delivery converge.
//
// Events that cannot be mapped are logged and dropped without error so the
// provider stops redelivering them.
func (s *Service) ApplySubscriptionEvent(ctx context.Context, ev SubscriptionEvent) error {
	log := s.logger.With(slog.String("event_id", ev.ID), slog.String("event_type", ev.Type))

	var (
		status models.SubscriptionStatus
		nanny  *models.NannyProfile
		err    error
	)
	switch ev.Type {
	case EventCheckoutCompleted:
		if ev.Mode != "" && ev.Mode != checkoutModeSubscription {
			return s.dropEvent(ctx, log, ev, outcomeIgnored, "checkout mode is not subscription")
		}
		status = models.SubscriptionTrial
		nanny, err = s.nannyByProfile(ctx, ev.ProfileID)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		var ok bool
		if status, ok = models.ParseProviderSubscriptionStatus(ev.ProviderStatus); !ok {
			return s.dropEvent(ctx, log, ev, outcomeIgnored, "unmapped provider status "+ev.ProviderStatus)
		}
		nanny, err = s.nannyBySubscription(ctx, ev.SubscriptionRef, ev.ProfileID)
	case EventSubscriptionDeleted:
		status = models.SubscriptionCancelled
		nanny, err = s.nannyBySubscription(ctx, ev.SubscriptionRef, ev.ProfileID)
	case EventInvoicePaymentFailed:
		status = models.SubscriptionInactive
		nanny, err = s.nannyBySubscription(ctx, ev.SubscriptionRef, 0)
	default:
		return s.dropEvent(ctx, log, ev, outcomeIgnored, "unhandled event type")
	}
	if err != nil {
		return s.unavailable(ctx, "resolve subscription", err)
	}
	if nanny == nil {
		return s.dropEvent(ctx, log, ev, outcomeUnresolved, "no nanny profile for event")
	}

	sub := nanny.Subscription
	sub.Status = status
	if ev.CustomerRef != "" {
		sub.CustomerRef = ev.CustomerRef
	}
	if ev.SubscriptionRef != "" {
		sub.SubscriptionRef = ev.SubscriptionRef
	}
	if ev.TrialEndsAt != nil {
		t := ev.TrialEndsAt.UTC()
		sub.TrialEndsAt = &t
	}
	if !ev.CreatedAt.IsZero() {
		sub.LastEventAt = ev.CreatedAt.Unix()
	}

	applied, err := s.store.UpdateSubscription(ctx, nanny.ProfileID, sub, status == models.SubscriptionCancelled)
	if err != nil {
		return s.unavailable(ctx, "update subscription", err)
	}
	if !applied {
		return s.dropEvent(ctx, log, ev, outcomeStale, "newer event already stored")
	}

	s.metrics.IncSubscriptionEvent(ev.Type, outcomeApplied)
	log.InfoContext(ctx, "subscription updated",
		slog.Int64("profile_id", nanny.ProfileID),
		slog.String("from", string(nanny.Subscription.Status)),
		slog.String("to", string(status)))
	jobs.Notify(ctx, s.jobs, s.logger, jobs.TypeNotifySubscription, events.Notification{
		Type:       events.TypeSubscriptionChanged,
		ProfileID:  nanny.ProfileID,
		Recipients: []int64{nanny.ProfileID},
		Status:     string(status),
	})
	return nil
}

func (s *Service) dropEvent(ctx context.Context, log *slog.Logger, ev SubscriptionEvent, outcome, reason string) error {
	s.metrics.IncSubscriptionEvent(ev.Type, outcome)
	log.WarnContext(ctx, "subscription event skipped", slog.String("outcome", outcome), slog.String("reason", reason))
	return nil
}

func (s *Service) nannyByProfile(ctx context.Context, profileID int64) (*models.NannyProfile, error) {
	if profileID <= 0 {
		return nil, nil
	}
	return s.store.GetNanny(ctx, profileID)
}

// nannyBySubscription prefers the profile already bound to ref. The provider
// may deliver subscription.created before checkout completion, so an unbound
// ref falls back to the metadata profile, but only while that profile has no
// subscription bound at all. A late event for an old subscription must not
// overwrite the current one, whatever its status.
func (s *Service) nannyBySubscription(ctx context.Context, ref string, metaProfileID int64) (*models.NannyProfile, error) {
	if ref != "" {
		n, err := s.store.GetNannyBySubscriptionRef(ctx, ref)
		if err != nil || n != nil {
			return n, err
		}
	}
	n, err := s.nannyByProfile(ctx, metaProfileID)
	if err != nil || n == nil {
		return n, err
	}
	if n.Subscription.SubscriptionRef != "" {
		return nil, nil
	}
	return n, nil
}
