// Package billing adapts Stripe to the profiles package: it opens
// subscription checkouts and turns signed webhook deliveries into
// subscription events.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/VYBRANDMEDIA/nannygo/internal/breaker"
	"github.com/VYBRANDMEDIA/nannygo/internal/config"
	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
)

// Metadata keys written on the checkout session and its subscription. The
// webhook reads them back.
const (
	metaUserID    = "userId"
	metaProfileID = "profileId"
	metaUserEmail = "userEmail"
	metaUserName  = "userName"
)

var ErrNotConfigured = errors.New("stripe secret key is not configured")

// StripeCheckout implements profiles.CheckoutCreator with hosted Stripe
// Checkout sessions.
type StripeCheckout struct {
	sessions session.Client
	cfg      config.StripeConfig
	cb       *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

var _ profiles.CheckoutCreator = (*StripeCheckout)(nil)

// NewStripeCheckout builds the checkout creator. A nil backend uses the
// Stripe API with cfg.Timeout.
func NewStripeCheckout(cfg config.StripeConfig, backend stripe.Backend, logger *slog.Logger) (*StripeCheckout, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
	}
	return &StripeCheckout{
		sessions: session.Client{B: backend, Key: cfg.SecretKey},
		cfg:      cfg,
		cb:       breaker.New("stripe", 30*time.Second, logger),
		logger:   logger,
	}, nil
}

func (c *StripeCheckout) CreateCheckout(ctx context.Context, req profiles.CheckoutRequest) (string, error) {
	meta := map[string]string{
		metaUserID:    req.UserID,
		metaProfileID: req.ProfileID,
		metaUserEmail: req.UserEmail,
		metaUserName:  req.UserName,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice(c.cfg.PaymentMethods),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(c.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(c.cfg.ProductName),
				},
				UnitAmount: stripe.Int64(c.cfg.UnitAmount),
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(c.cfg.TrialDays),
			Metadata:        meta,
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
	}
	if req.UserEmail != "" {
		params.CustomerEmail = stripe.String(req.UserEmail)
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.sessions.New(params)
	})
	if err != nil {
		return "", err
	}
	s := out.(*stripe.CheckoutSession)
	c.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", s.ID), slog.String("profile_id", req.ProfileID))
	return s.URL, nil
}
