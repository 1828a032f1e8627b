// Package profiles owns parent and nanny profiles, nanny availability and the
// subscription state that decides whether a nanny shows up in search.
package profiles

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/VYBRANDMEDIA/nannygo/internal/jobs"
	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

// ObjectStore stores uploaded bytes and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// CheckoutCreator opens a hosted subscription checkout and returns the URL
// the client is redirected to.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
}

type Options struct {
	AdminEmails   []string
	MaxPhotoBytes int64
	PublicURL     string // fallback checkout return origin
	Metrics       *metrics.Metrics
	Jobs          jobs.Enqueuer
	Objects       ObjectStore
	Checkout      CheckoutCreator
	Now           func() time.Time // defaults to time.Now
}

type Service struct {
	store    repository.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	jobs     jobs.Enqueuer
	objects  ObjectStore
	checkout CheckoutCreator
	now      func() time.Time

	admins        map[string]struct{}
	maxPhotoBytes int64
	publicURL     string
}

func NewService(store repository.Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	maxBytes := opts.MaxPhotoBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:         store,
		logger:        logger,
		metrics:       opts.Metrics,
		jobs:          opts.Jobs,
		objects:       opts.Objects,
		checkout:      opts.Checkout,
		now:           clock,
		admins:        admins,
		maxPhotoBytes: maxBytes,
		publicURL:     strings.TrimRight(opts.PublicURL, "/"),
	}
}

type CreateProfileInput struct {
	Role            string   `json:"role"`
	FullName        string   `json:"full_name"`
	Phone           string   `json:"phone"`
	City            string   `json:"city"`
	YouTubeVideoURL string   `json:"youtube_video_url"`
	Bio             string   `json:"bio"`
	HourlyRate      int64    `json:"hourly_rate"`
	YearsExperience int      `json:"years_experience"`
	MaxChildren     int      `json:"max_children"`
	Tags            []string `json:"tags"`
}

// ProfileUpdate replaces the editable fields of the caller's profile.
type ProfileUpdate struct {
	FullName        string `json:"full_name"`
	Phone           string `json:"phone"`
	City            string `json:"city"`
	YouTubeVideoURL string `json:"youtube_video_url"`
}

// NannyProfileUpdate carries the nanny-editable fields. Nil fields are left
// unchanged. Subscription state is not part of it.
type NannyProfileUpdate struct {
	Bio             *string   `json:"bio"`
	HourlyRate      *int64    `json:"hourly_rate"`
	YearsExperience *int      `json:"years_experience"`
	MaxChildren     *int      `json:"max_children"`
	Tags            *[]string `json:"tags"`
	IsAvailable     *bool     `json:"is_available"`
}

type NannyFilter struct {
	City string
}

// MyProfile is the caller's own view: the profile plus, for nannies, the
// nanny profile with its subscription.
type MyProfile struct {
	Profile models.Profile       `json:"profile"`
	Nanny   *models.NannyProfile `json:"nanny_profile,omitempty"`
}

// NannyDetail is the public page of one nanny.
type NannyDetail struct {
	Profile models.Profile      `json:"profile"`
	Nanny   models.NannyProfile `json:"nanny_profile"`
	Reviews []models.Review     `json:"reviews"`
}

func (s *Service) unavailable(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "datastore failure", slog.String("op", op), slog.Any("err", err))
	return domainerr.Wrap(err, domainerr.CodeUnavailable, "datastore unavailable")
}

func (s *Service) isAdminEmail(email string) bool {
	_, ok := s.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// CreateProfile onboards the authenticated user. Nanny profiles start with an
// inactive subscription and are available by default.
func (s *Service) CreateProfile(ctx context.Context, id models.Identity, in CreateProfileInput) (*MyProfile, error) {
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return nil, domainerr.Newf(domainerr.CodeInvalidInput, "unknown role %q", in.Role)
	}
	if role == models.RoleAdmin && !s.isAdminEmail(id.Email) {
		return nil, domainerr.New(domainerr.CodeForbidden, "admin role is not allowed for this account")
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "full_name is required")
	}
	if err := validateVideoURL(in.YouTubeVideoURL); err != nil {
		return nil, err
	}

	p := &models.Profile{
		UserID:          id.ID,
		Role:            role,
		FullName:        name,
		Phone:           strings.TrimSpace(in.Phone),
		City:            strings.TrimSpace(in.City),
		YouTubeVideoURL: strings.TrimSpace(in.YouTubeVideoURL),
		IsActive:        true,
	}
	var nanny *models.NannyProfile
	if role == models.RoleNanny {
		if err := validateNannyNumbers(in.HourlyRate, in.YearsExperience, in.MaxChildren); err != nil {
			return nil, err
		}
		nanny = &models.NannyProfile{
			Bio:             strings.TrimSpace(in.Bio),
			HourlyRate:      in.HourlyRate,
			YearsExperience: in.YearsExperience,
			MaxChildren:     in.MaxChildren,
			Tags:            cleanTags(in.Tags),
			IsAvailable:     true,
			Subscription:    models.Subscription{Status: models.SubscriptionInactive},
		}
	}

	pid, err := s.store.CreateProfile(ctx, p, nanny)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domainerr.New(domainerr.CodeConflict, "profile already exists")
		}
		return nil, s.unavailable(ctx, "create profile", err)
	}
	s.logger.InfoContext(ctx, "profile created", slog.Int64("profile_id", pid), slog.String("role", string(role)))
	return s.loadMyProfile(ctx, pid)
}

// GetMyProfile returns the caller's profile, or NotFound before onboarding.
func (s *Service) GetMyProfile(ctx context.Context, userID int64) (*MyProfile, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, s.unavailable(ctx, "get profile", err)
	}
	if p == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "profile not found")
	}
	return s.withNanny(ctx, p)
}

// ResolveActor maps an authenticated user to the profile that acts for them.
// Deactivated profiles may not act.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (*models.Profile, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, s.unavailable(ctx, "resolve actor", err)
	}
	if p == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "profile not found")
	}
	if !p.IsActive {
		return nil, domainerr.New(domainerr.CodeForbidden, "profile is deactivated")
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, callerProfileID int64, in ProfileUpdate) (*MyProfile, error) {
	p, err := s.store.GetProfileByID(ctx, callerProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get profile", err)
	}
	if p == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "profile not found")
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "full_name is required")
	}
	if err := validateVideoURL(in.YouTubeVideoURL); err != nil {
		return nil, err
	}
	p.FullName = name
	p.Phone = strings.TrimSpace(in.Phone)
	p.City = strings.TrimSpace(in.City)
	p.YouTubeVideoURL = strings.TrimSpace(in.YouTubeVideoURL)
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return nil, s.unavailable(ctx, "update profile", err)
	}
	return s.withNanny(ctx, p)
}

func (s *Service) UpdateNannyProfile(ctx context.Context, callerProfileID int64, in NannyProfileUpdate) (*models.NannyProfile, error) {
	n, err := s.store.GetNanny(ctx, callerProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "nanny profile not found")
	}
	if in.Bio != nil {
		n.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.HourlyRate != nil {
		n.HourlyRate = *in.HourlyRate
	}
	if in.YearsExperience != nil {
		n.YearsExperience = *in.YearsExperience
	}
	if in.MaxChildren != nil {
		n.MaxChildren = *in.MaxChildren
	}
	if in.Tags != nil {
		n.Tags = cleanTags(*in.Tags)
	}
	if in.IsAvailable != nil {
		n.IsAvailable = *in.IsAvailable
	}
	if err := validateNannyNumbers(n.HourlyRate, n.YearsExperience, n.MaxChildren); err != nil {
		return nil, err
	}
	if err := s.store.UpdateNannyDetails(ctx, n); err != nil {
		return nil, s.unavailable(ctx, "update nanny", err)
	}
	return n, nil
}

// GetNanny returns the public detail of a nanny with the reviews about them.
func (s *Service) GetNanny(ctx context.Context, profileID int64) (*NannyDetail, error) {
	p, err := s.store.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get profile", err)
	}
	if p == nil || p.Role != models.RoleNanny {
		return nil, domainerr.New(domainerr.CodeNotFound, "nanny not found")
	}
	n, err := s.store.GetNanny(ctx, profileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "nanny not found")
	}
	reviews, err := s.store.ListReviewsFor(ctx, profileID)
	if err != nil {
		return nil, s.unavailable(ctx, "list reviews", err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return &NannyDetail{Profile: *p, Nanny: *n, Reviews: reviews}, nil
}

// ListVisibleNannies returns the search directory. The city filter is a
// trimmed, case-insensitive equality match.
func (s *Service) ListVisibleNannies(ctx context.Context, f NannyFilter) ([]models.NannyListing, error) {
	rows, err := s.store.ListVisible(ctx, strings.TrimSpace(f.City))
	if err != nil {
		return nil, s.unavailable(ctx, "list visible", err)
	}
	out := make([]models.NannyListing, 0, len(rows))
	for _, l := range rows {
		if l.Nanny.SearchVisible() {
			out = append(out, l)
		}
	}
	return out, nil
}

// SetAvailability toggles is_available on the caller's own nanny profile.
func (s *Service) SetAvailability(ctx context.Context, callerProfileID, nannyProfileID int64, available bool) error {
	n, err := s.store.GetNanny(ctx, nannyProfileID)
	if err != nil {
		return s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return domainerr.New(domainerr.CodeNotFound, "nanny profile not found")
	}
	if n.ProfileID != callerProfileID {
		return domainerr.New(domainerr.CodeForbidden, "only the owner may change availability")
	}
	if err := s.store.SetAvailability(ctx, nannyProfileID, available); err != nil {
		return s.unavailable(ctx, "set availability", err)
	}
	return nil
}

func (s *Service) loadMyProfile(ctx context.Context, profileID int64) (*MyProfile, error) {
	p, err := s.store.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get profile", err)
	}
	if p == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "profile not found")
	}
	return s.withNanny(ctx, p)
}

func (s *Service) withNanny(ctx context.Context, p *models.Profile) (*MyProfile, error) {
	out := &MyProfile{Profile: *p}
	if p.Role != models.RoleNanny {
		return out, nil
	}
	n, err := s.store.GetNanny(ctx, p.ID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	out.Nanny = n
	return out, nil
}

func validateVideoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !govalidator.IsURL(raw) {
		return domainerr.New(domainerr.CodeInvalidInput, "youtube_video_url must be a URL")
	}
	return nil
}

func validateNannyNumbers(rate int64, years, maxChildren int) error {
	switch {
	case rate < 0:
		return domainerr.New(domainerr.CodeInvalidInput, "hourly_rate must not be negative")
	case years < 0:
		return domainerr.New(domainerr.CodeInvalidInput, "years_experience must not be negative")
	case maxChildren < 0:
		return domainerr.New(domainerr.CodeInvalidInput, "max_children must not be negative")
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(t)]; dup {
			continue
		}
		seen[strings.ToLower(t)] = struct{}{}
		out = append(out, t)
	}
	return out
}
