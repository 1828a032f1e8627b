package profiles

import (
	"context"
	"log/slog"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/internal/events"
	"github.com/VYBRANDMEDIA/nannygo/internal/jobs"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

// ContactStatsWindow is the period ContactStats counts over.
const ContactStatsWindow = 30 * 24 * time.Hour

type ContactStats struct {
	Since time.Time `json:"since"`
	Count int       `json:"count"`
}

// LogContact records that a parent reached out to a nanny through one of the
// contact channels. Only the first contact per parent, nanny and UTC day is
// kept; it reports whether this call recorded a new one.
func (s *Service) LogContact(ctx context.Context, callerProfileID, nannyProfileID int64, contactType string) (bool, error) {
	ct, ok := models.ParseContactType(contactType)
	if !ok {
		return false, domainerr.New(domainerr.CodeInvalidInput, "unknown contact type")
	}
	if err := s.requireParent(ctx, callerProfileID, "log contact requests"); err != nil {
		return false, err
	}
	n, err := s.store.GetNanny(ctx, nannyProfileID)
	if err != nil {
		return false, s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return false, domainerr.New(domainerr.CodeNotFound, "nanny not found")
	}

	at := s.now().UTC()
	created, err := s.store.CreateContactRequest(ctx, &models.ContactRequest{
		ParentID:    callerProfileID,
		NannyID:     nannyProfileID,
		ContactType: ct,
		Day:         at.Format(models.DateLayout),
		Created:     at,
	})
	if err != nil {
		return false, s.unavailable(ctx, "create contact request", err)
	}
	if !created {
		return false, nil
	}

	s.logger.InfoContext(ctx, "contact request logged",
		slog.Int64("parent_id", callerProfileID), slog.Int64("nanny_id", nannyProfileID), slog.String("contact_type", string(ct)))
	jobs.Notify(ctx, s.jobs, s.logger, jobs.TypeNotifyContact, events.Notification{
		Type:       events.TypeContactRequested,
		ProfileID:  callerProfileID,
		Recipients: []int64{nannyProfileID},
		Status:     string(ct),
		At:         at,
	})
	return true, nil
}

// ContactStats counts the contact requests the calling nanny received over
// the last ContactStatsWindow.
func (s *Service) ContactStats(ctx context.Context, callerProfileID int64) (*ContactStats, error) {
	n, err := s.store.GetNanny(ctx, callerProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return nil, domainerr.New(domainerr.CodeForbidden, "only nannies receive contact requests")
	}
	since := s.now().UTC().Add(-ContactStatsWindow)
	count, err := s.store.CountContactRequests(ctx, callerProfileID, since)
	if err != nil {
		return nil, s.unavailable(ctx, "count contact requests", err)
	}
	return &ContactStats{Since: since, Count: count}, nil
}
