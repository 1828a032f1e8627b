package models

import (
	"strings"
	"time"
)

// Domain models matching the database schema in db/migrations/.

// Identity is what the identity provider hands the core for an authenticated
// request.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Created      time.Time `json:"created" db:"created"`
}

type Role string

const (
	RoleParent Role = "parent"
	RoleNanny  Role = "nanny"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleParent, RoleNanny, RoleAdmin:
		return r, true
	}
	return "", false
}

type Profile struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"user_id" db:"user_id"`
	Role            Role      `json:"role" db:"role"`
	FullName        string    `json:"full_name" db:"full_name"`
	Phone           string    `json:"phone,omitempty" db:"phone"`
	City            string    `json:"city,omitempty" db:"city"`
	AvatarURL       string    `json:"avatar_url,omitempty" db:"avatar_url"`
	YouTubeVideoURL string    `json:"youtube_video_url,omitempty" db:"youtube_video_url"`
	AverageRating   int       `json:"average_rating" db:"average_rating"` // stars x100
	ReviewCount     int       `json:"review_count" db:"review_count"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	Created         time.Time `json:"created" db:"created"`
}

// NormalizeCity is the form cities are compared in: trimmed and lowercased
// with full Unicode case folding.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionInactive, SubscriptionTrial, SubscriptionActive, SubscriptionCancelled:
		return true
	}
	return false
}

// Grants reports whether the status lets a nanny appear in search.
func (s SubscriptionStatus) Grants() bool {
	return s == SubscriptionTrial || s == SubscriptionActive
}

// ParseProviderSubscriptionStatus maps the payment provider's subscription
// vocabulary onto the closed internal set. Failing states map to inactive so
// they are never shown as paid.
func ParseProviderSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trialing":
		return SubscriptionTrial, true
	case "active":
		return SubscriptionActive, true
	case "past_due", "unpaid", "incomplete", "paused":
		return SubscriptionInactive, true
	case "canceled", "cancelled", "incomplete_expired":
		return SubscriptionCancelled, true
	}
	return "", false
}

// Subscription is the payment-provider-derived state owned by a NannyProfile.
type Subscription struct {
	Status          SubscriptionStatus `json:"status" db:"subscription_status"`
	CustomerRef     string             `json:"-" db:"customer_ref"`
	SubscriptionRef string             `json:"-" db:"subscription_ref"`
	TrialEndsAt     *time.Time         `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	LastEventAt     int64              `json:"-" db:"subscription_event_at"` // provider event time, unix seconds
}

type NannyProfile struct {
	ID              int64        `json:"id" db:"id"`
	ProfileID       int64        `json:"profile_id" db:"profile_id"`
	Bio             string       `json:"bio,omitempty" db:"bio"`
	HourlyRate      int64        `json:"hourly_rate" db:"hourly_rate"` // cents
	YearsExperience int          `json:"years_experience" db:"years_experience"`
	MaxChildren     int          `json:"max_children" db:"max_children"`
	Tags            []string     `json:"tags" db:"tags"`
	IsAvailable     bool         `json:"is_available" db:"is_available"`
	Subscription    Subscription `json:"subscription"`
	Created         time.Time    `json:"created" db:"created"`
}

// SearchVisible is the directory inclusion predicate.
func (n NannyProfile) SearchVisible() bool {
	return n.IsAvailable && n.Subscription.Status.Grants()
}

type NannyListing struct {
	Profile Profile      `json:"profile"`
	Nanny   NannyProfile `json:"nanny_profile"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingDeclined  BookingStatus = "declined"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAccepted, BookingDeclined},
	BookingAccepted: {BookingCompleted, BookingCancelled},
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case BookingPending, BookingAccepted, BookingDeclined, BookingCompleted, BookingCancelled:
		return st, true
	}
	return "", false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// CanTransitionTo reports whether next is a direct edge from s.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, to := range bookingTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Booking struct {
	ID            int64         `json:"id" db:"id"`
	ParentID      int64         `json:"parent_id" db:"parent_id"`
	NannyID       int64         `json:"nanny_id" db:"nanny_id"`
	StartTime     time.Time     `json:"start_time" db:"start_time"`
	EndTime       time.Time     `json:"end_time" db:"end_time"`
	Address       string        `json:"address" db:"address"`
	Notes         string        `json:"notes,omitempty" db:"notes"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentRef    string        `json:"payment_ref,omitempty" db:"payment_ref"`
	TotalAmount   int64         `json:"total_amount" db:"total_amount"` // cents
	Created       time.Time     `json:"created" db:"created"`
}

// IsParty reports whether profileID is the parent or the nanny of b.
func (b Booking) IsParty(profileID int64) bool {
	return profileID == b.ParentID || profileID == b.NannyID
}

type BookingDetail struct {
	Booking Booking `json:"booking"`
	Parent  Profile `json:"parent_profile"`
	Nanny   Profile `json:"nanny_profile"`
}

// BookingSummary is a booking as seen from one side, with the other party.
type BookingSummary struct {
	Booking     Booking `json:"booking"`
	Counterpart Profile `json:"counterpart"`
}

type Review struct {
	ID         int64     `json:"id" db:"id"`
	BookingID  int64     `json:"booking_id" db:"booking_id"`
	ReviewerID int64     `json:"reviewer_id" db:"reviewer_id"`
	RevieweeID int64     `json:"reviewee_id" db:"reviewee_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	Created    time.Time `json:"created" db:"created"`
}

type ContactType string

const (
	ContactCall         ContactType = "call"
	ContactWhatsApp     ContactType = "whatsapp"
	ContactEmail        ContactType = "email"
	ContactBookingModal ContactType = "booking_modal"
)

func ParseContactType(s string) (ContactType, bool) {
	switch c := ContactType(strings.ToLower(strings.TrimSpace(s))); c {
	case ContactCall, ContactWhatsApp, ContactEmail, ContactBookingModal:
		return c, true
	}
	return "", false
}

// ContactRequest records that a parent reached out to a nanny. Day is the
// UTC calendar day (YYYY-MM-DD); one request is kept per parent, nanny and day.
type ContactRequest struct {
	ID          int64       `json:"id" db:"id"`
	ParentID    int64       `json:"parent_id" db:"parent_id"`
	NannyID     int64       `json:"nanny_id" db:"nanny_id"`
	ContactType ContactType `json:"contact_type" db:"contact_type"`
	Day         string      `json:"day" db:"contact_day"`
	Created     time.Time   `json:"created" db:"created"`
}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"
