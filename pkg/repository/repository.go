package repository

import (
	"context"
	"errors"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Lookups return (nil, nil) when the row does not exist.

// ErrDuplicate is returned (wrapped) when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type ProfileRepo interface {
	// CreateProfile inserts the profile and, when nanny is not nil, its
	// NannyProfile in the same transaction.
	CreateProfile(ctx context.Context, p *models.Profile, nanny *models.NannyProfile) (int64, error)
	GetProfileByID(ctx context.Context, id int64) (*models.Profile, error)
	GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	SetAvatarURL(ctx context.Context, id int64, url string) error
	SetProfileActive(ctx context.Context, id int64, active bool) error
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

type NannyRepo interface {
	GetNanny(ctx context.Context, profileID int64) (*models.NannyProfile, error)
	GetNannyBySubscriptionRef(ctx context.Context, ref string) (*models.NannyProfile, error)
	// ListVisible returns the search-visible nannies, optionally restricted to
	// a city (case-insensitive), in creation order.
	ListVisible(ctx context.Context, city string) ([]models.NannyListing, error)
	UpdateNannyDetails(ctx context.Context, n *models.NannyProfile) error
	SetAvailability(ctx context.Context, profileID int64, available bool) error
	// UpdateSubscription writes sub unless a newer event was stored
	// concurrently. It reports whether the row was written.
	UpdateSubscription(ctx context.Context, profileID int64, sub models.Subscription, forceUnavailable bool) (bool, error)
}

type BookingRepo interface {
	CreateBooking(ctx context.Context, b *models.Booking) (int64, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	// UpdateBookingStatus moves the booking from one status to another and
	// reports false when the stored status was no longer from.
	UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error)
	ListBookingsByParty(ctx context.Context, profileID int64) ([]models.Booking, error)
}

type ReviewRepo interface {
	// CreateReview inserts the review and refreshes the reviewee's rating
	// aggregate in the same transaction.
	CreateReview(ctx context.Context, r *models.Review) (int64, error)
	HasReview(ctx context.Context, bookingID, reviewerID int64) (bool, error)
	ListReviewsFor(ctx context.Context, revieweeID int64) ([]models.Review, error)
}

type FavoriteRepo interface {
	AddFavorite(ctx context.Context, parentID, nannyID int64) error
	RemoveFavorite(ctx context.Context, parentID, nannyID int64) error
	ListFavorites(ctx context.Context, parentID int64) ([]models.NannyListing, error)
}

// CalendarRepo keeps the per-date availability calendar of nannies. Dates
// use models.DateLayout.
type CalendarRepo interface {
	// ReplaceAvailableDates swaps the whole calendar in one transaction.
	ReplaceAvailableDates(ctx context.Context, nannyID int64, dates []string) error
	// ListAvailableDates returns the dates on or after from, ascending.
	ListAvailableDates(ctx context.Context, nannyID int64, from string) ([]string, error)
}

type ContactRepo interface {
	// CreateContactRequest reports false when the parent already contacted
	// the nanny on c.Day.
	CreateContactRequest(ctx context.Context, c *models.ContactRequest) (bool, error)
	CountContactRequests(ctx context.Context, nannyID int64, since time.Time) (int, error)
}

// Store bundles every repository; the SQL implementation satisfies it.
type Store interface {
	UserRepo
	ProfileRepo
	NannyRepo
	BookingRepo
	ReviewRepo
	FavoriteRepo
	CalendarRepo
	ContactRepo
}
