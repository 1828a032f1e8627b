package profiles

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

// CheckoutRequest is what the checkout creator needs to open a subscription
// checkout. The ids travel back in the provider's event metadata.
type CheckoutRequest struct {
	UserID     string
	UserEmail  string
	UserName   string
	ProfileID  string
	SuccessURL string
	CancelURL  string
}

// StartCheckout opens a subscription checkout for the calling nanny and
// returns the redirect URL. origin is the client origin the provider returns
// the user to.
func (s *Service) StartCheckout(ctx context.Context, id models.Identity, origin string) (string, error) {
	p, err := s.ResolveActor(ctx, id.ID)
	if err != nil {
		return "", err
	}
	if p.Role != models.RoleNanny {
		return "", domainerr.New(domainerr.CodeForbidden, "only nannies can subscribe")
	}
	n, err := s.store.GetNanny(ctx, p.ID)
	if err != nil {
		return "", s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return "", domainerr.New(domainerr.CodeNotFound, "nanny profile not found")
	}
	if n.Subscription.Status.Grants() {
		return "", domainerr.New(domainerr.CodeConflict, "subscription already running")
	}
	if s.checkout == nil {
		return "", domainerr.New(domainerr.CodeUnavailable, "payments are not configured")
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		origin = s.publicURL
	}

	url, err := s.checkout.CreateCheckout(ctx, CheckoutRequest{
		UserID:     strconv.FormatInt(id.ID, 10),
		UserEmail:  id.Email,
		UserName:   p.FullName,
		ProfileID:  strconv.FormatInt(p.ID, 10),
		SuccessURL: origin + "/app/nanny?subscription=success",
		CancelURL:  origin + "/app/nanny/subscription?canceled=true",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "checkout failed", slog.Int64("profile_id", p.ID), slog.Any("err", err))
		return "", domainerr.Wrap(err, domainerr.CodeUnavailable, "payment provider unavailable")
	}
	return url, nil
}
