package profiles

import (
	"context"
	"log/slog"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

func (s *Service) requireAdmin(ctx context.Context, callerProfileID int64) error {
	p, err := s.store.GetProfileByID(ctx, callerProfileID)
	if err != nil {
		return s.unavailable(ctx, "get profile", err)
	}
	if p == nil || p.Role != models.RoleAdmin {
		return domainerr.New(domainerr.CodeForbidden, "admin only")
	}
	return nil
}

// IsAdmin reports whether the profile has the admin role.
func (s *Service) IsAdmin(ctx context.Context, profileID int64) (bool, error) {
	err := s.requireAdmin(ctx, profileID)
	if domainerr.HasCode(err, domainerr.CodeForbidden) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) ListProfiles(ctx context.Context, callerProfileID int64) ([]models.Profile, error) {
	if err := s.requireAdmin(ctx, callerProfileID); err != nil {
		return nil, err
	}
	out, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, s.unavailable(ctx, "list profiles", err)
	}
	if out == nil {
		out = []models.Profile{}
	}
	return out, nil
}

// SetProfileActive activates or deactivates a profile. Admins cannot
// deactivate themselves.
func (s *Service) SetProfileActive(ctx context.Context, callerProfileID, profileID int64, active bool) error {
	if err := s.requireAdmin(ctx, callerProfileID); err != nil {
		return err
	}
	if profileID == callerProfileID && !active {
		return domainerr.New(domainerr.CodeInvalidInput, "admins cannot deactivate themselves")
	}
	p, err := s.store.GetProfileByID(ctx, profileID)
	if err != nil {
		return s.unavailable(ctx, "get profile", err)
	}
	if p == nil {
		return domainerr.New(domainerr.CodeNotFound, "profile not found")
	}
	if err := s.store.SetProfileActive(ctx, profileID, active); err != nil {
		return s.unavailable(ctx, "set profile active", err)
	}
	s.logger.InfoContext(ctx, "profile activation changed",
		slog.Int64("admin_id", callerProfileID), slog.Int64("profile_id", profileID), slog.Bool("active", active))
	return nil
}
