package bookings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

// CreateReview lets a party of a completed booking rate the other party once.
func (s *Service) CreateReview(ctx context.Context, callerProfileID, bookingID int64, rating int, comment string) (*models.Review, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.unavailable(ctx, "get booking", err)
	}
	if b == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "booking not found")
	}
	if !b.IsParty(callerProfileID) {
		return nil, domainerr.New(domainerr.CodeForbidden, "not a party to this booking")
	}
	if b.Status != models.BookingCompleted {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "only completed bookings can be reviewed")
	}
	if rating < 1 || rating > 5 {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "rating must be between 1 and 5")
	}

	r := &models.Review{
		BookingID:  b.ID,
		ReviewerID: callerProfileID,
		RevieweeID: b.NannyID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
	}
	if callerProfileID == b.NannyID {
		r.RevieweeID = b.ParentID
	}
	id, err := s.store.CreateReview(ctx, r)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domainerr.New(domainerr.CodeConflict, "booking already reviewed")
		}
		return nil, s.unavailable(ctx, "create review", err)
	}
	r.ID = id
	s.logger.InfoContext(ctx, "review created",
		slog.Int64("booking_id", b.ID), slog.Int64("reviewee_id", r.RevieweeID), slog.Int("rating", rating))
	return r, nil
}
