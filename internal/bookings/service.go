// Package bookings implements the booking lifecycle between a parent and a
// nanny and the reviews left once a booking is completed.
//
//	pending -> accepted | declined
//	accepted -> completed | cancelled
//
// declined, completed and cancelled are terminal. Overlapping bookings for
// the same nanny are not prevented.
package bookings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/internal/events"
	"github.com/VYBRANDMEDIA/nannygo/internal/jobs"
	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

type Service struct {
	store   repository.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	jobs    jobs.Enqueuer
}

func NewService(store repository.Store, logger *slog.Logger, m *metrics.Metrics, q jobs.Enqueuer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, metrics: m, jobs: q}
}

type CreateBookingInput struct {
	NannyID   int64     `json:"nanny_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
}

func (s *Service) unavailable(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "datastore failure", slog.String("op", op), slog.Any("err", err))
	return domainerr.Wrap(err, domainerr.CodeUnavailable, "datastore unavailable")
}

func (s *Service) profile(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := s.store.GetProfileByID(ctx, id)
	if err != nil {
		return nil, s.unavailable(ctx, "get profile", err)
	}
	return p, nil
}

// CreateBooking records a pending, unpaid booking request from a parent.
// The total is the nanny's hourly rate times the booked duration, rounded to
// the nearest cent.
func (s *Service) CreateBooking(ctx context.Context, callerProfileID int64, in CreateBookingInput) (*models.Booking, error) {
	caller, err := s.profile(ctx, callerProfileID)
	if err != nil {
		return nil, err
	}
	if caller == nil || caller.Role != models.RoleParent {
		return nil, domainerr.New(domainerr.CodeForbidden, "only parents can request bookings")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "end_time must be after start_time")
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "address is required")
	}
	nanny, err := s.store.GetNanny(ctx, in.NannyID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	if nanny == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "nanny not found")
	}

	b := &models.Booking{
		ParentID:      caller.ID,
		NannyID:       nanny.ProfileID,
		StartTime:     in.StartTime.UTC(),
		EndTime:       in.EndTime.UTC(),
		Address:       address,
		Notes:         strings.TrimSpace(in.Notes),
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentUnpaid,
		TotalAmount:   TotalAmount(nanny.HourlyRate, in.EndTime.Sub(in.StartTime)),
	}
	id, err := s.store.CreateBooking(ctx, b)
	if err != nil {
		return nil, s.unavailable(ctx, "create booking", err)
	}
	created, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, s.unavailable(ctx, "get booking", err)
	}
	if created == nil {
		b.ID = id
		created = b
	}

	s.metrics.IncBookingCreated()
	s.logger.InfoContext(ctx, "booking created",
		slog.Int64("booking_id", id), slog.Int64("parent_id", b.ParentID), slog.Int64("nanny_id", b.NannyID))
	jobs.Notify(ctx, s.jobs, s.logger, jobs.TypeNotifyBooking, events.Notification{
		Type:       events.TypeBookingCreated,
		BookingID:  id,
		Recipients: []int64{b.NannyID},
		Status:     string(models.BookingPending),
	})
	return created, nil
}

// TotalAmount is rate (cents per hour) times d, rounded to whole cents.
func TotalAmount(rate int64, d time.Duration) int64 {
	if rate <= 0 || d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	return (rate*secs + 1800) / 3600
}

// TransitionStatus moves a booking along the state machine. Errors are
// checked in order: missing booking, caller not a party, illegal edge, then
// the per-party rules (only the nanny accepts or declines). The write is a
// compare-and-set on the current status; a concurrent change makes it an
// invalid transition.
func (s *Service) TransitionStatus(ctx context.Context, bookingID int64, requested models.BookingStatus, callerProfileID int64) (*models.Booking, error) {
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
	from := b.Status
	if !from.CanTransitionTo(requested) {
		return nil, domainerr.Newf(domainerr.CodeInvalidTransition, "cannot move booking from %s to %s", from, requested)
	}
	if (requested == models.BookingAccepted || requested == models.BookingDeclined) && callerProfileID != b.NannyID {
		return nil, domainerr.Newf(domainerr.CodeForbidden, "only the nanny can mark a booking %s", requested)
	}

	ok, err := s.store.UpdateBookingStatus(ctx, bookingID, from, requested)
	if err != nil {
		return nil, s.unavailable(ctx, "update booking status", err)
	}
	if !ok {
		return nil, domainerr.Newf(domainerr.CodeInvalidTransition, "booking is no longer %s", from)
	}
	b.Status = requested

	s.metrics.IncBookingTransition(string(from), string(requested))
	s.logger.InfoContext(ctx, "booking status changed",
		slog.Int64("booking_id", bookingID), slog.String("from", string(from)), slog.String("to", string(requested)),
		slog.Int64("actor_id", callerProfileID))
	counterpart := b.ParentID
	if callerProfileID == b.ParentID {
		counterpart = b.NannyID
	}
	jobs.Notify(ctx, s.jobs, s.logger, jobs.TypeNotifyBooking, events.Notification{
		Type:       events.TypeBookingStatusChanged,
		BookingID:  bookingID,
		Recipients: []int64{counterpart},
		Status:     string(requested),
	})
	return b, nil
}

// GetBooking returns a booking with both profiles. Only the two parties and
// admins may read it.
func (s *Service) GetBooking(ctx context.Context, bookingID, callerProfileID int64) (*models.BookingDetail, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.unavailable(ctx, "get booking", err)
	}
	if b == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "booking not found")
	}
	if !b.IsParty(callerProfileID) {
		caller, err := s.profile(ctx, callerProfileID)
		if err != nil {
			return nil, err
		}
		if caller == nil || caller.Role != models.RoleAdmin {
			return nil, domainerr.New(domainerr.CodeForbidden, "not a party to this booking")
		}
	}

	parent, err := s.profile(ctx, b.ParentID)
	if err != nil {
		return nil, err
	}
	nanny, err := s.profile(ctx, b.NannyID)
	if err != nil {
		return nil, err
	}
	out := &models.BookingDetail{Booking: *b}
	if parent != nil {
		out.Parent = *parent
	}
	if nanny != nil {
		out.Nanny = *nanny
	}
	return out, nil
}

// ListMyBookings returns the caller's bookings, as parent or nanny, each with
// the other party's profile, oldest first.
func (s *Service) ListMyBookings(ctx context.Context, callerProfileID int64) ([]models.BookingSummary, error) {
	list, err := s.store.ListBookingsByParty(ctx, callerProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "list bookings", err)
	}
	out := make([]models.BookingSummary, 0, len(list))
	cache := map[int64]models.Profile{}
	for _, b := range list {
		other := b.NannyID
		if b.NannyID == callerProfileID {
			other = b.ParentID
		}
		p, ok := cache[other]
		if !ok {
			found, err := s.profile(ctx, other)
			if err != nil {
				return nil, err
			}
			if found != nil {
				p = *found
			}
			cache[other] = p
		}
		out = append(out, models.BookingSummary{Booking: b, Counterpart: p})
	}
	return out, nil
}
