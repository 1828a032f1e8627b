package profiles

import (
	"context"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

func (s *Service) requireParent(ctx context.Context, profileID int64, action string) error {
	p, err := s.store.GetProfileByID(ctx, profileID)
	if err != nil {
		return s.unavailable(ctx, "get profile", err)
	}
	if p == nil || p.Role != models.RoleParent {
		return domainerr.New(domainerr.CodeForbidden, "only parents "+action)
	}
	return nil
}

// AddFavorite is idempotent.
func (s *Service) AddFavorite(ctx context.Context, callerProfileID, nannyProfileID int64) error {
	if err := s.requireParent(ctx, callerProfileID, "keep favorites"); err != nil {
		return err
	}
	n, err := s.store.GetNanny(ctx, nannyProfileID)
	if err != nil {
		return s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return domainerr.New(domainerr.CodeNotFound, "nanny not found")
	}
	if err := s.store.AddFavorite(ctx, callerProfileID, nannyProfileID); err != nil {
		return s.unavailable(ctx, "add favorite", err)
	}
	return nil
}

// RemoveFavorite is idempotent; removing a missing favorite succeeds.
func (s *Service) RemoveFavorite(ctx context.Context, callerProfileID, nannyProfileID int64) error {
	if err := s.requireParent(ctx, callerProfileID, "keep favorites"); err != nil {
		return err
	}
	if err := s.store.RemoveFavorite(ctx, callerProfileID, nannyProfileID); err != nil {
		return s.unavailable(ctx, "remove favorite", err)
	}
	return nil
}

func (s *Service) ListFavorites(ctx context.Context, callerProfileID int64) ([]models.NannyListing, error) {
	if err := s.requireParent(ctx, callerProfileID, "keep favorites"); err != nil {
		return nil, err
	}
	out, err := s.store.ListFavorites(ctx, callerProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "list favorites", err)
	}
	if out == nil {
		out = []models.NannyListing{}
	}
	return out, nil
}
