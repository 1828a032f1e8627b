package billing

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
)

// WebhookVerifier checks the Stripe-Signature header and decodes the event.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Parse verifies payload against the signature header and reduces it to a
// profiles.SubscriptionEvent. Event types the profiles package does not
// handle come back with only ID, Type and CreatedAt set.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (profiles.SubscriptionEvent, error) {
	if v.secret == "" {
		return profiles.SubscriptionEvent{}, domainerr.New(domainerr.CodeUnavailable, "webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return profiles.SubscriptionEvent{}, domainerr.Wrap(err, domainerr.CodeUnauthorized, "invalid webhook signature")
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (profiles.SubscriptionEvent, error) {
	out := profiles.SubscriptionEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Created > 0 {
		out.CreatedAt = time.Unix(ev.Created, 0).UTC()
	}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case profiles.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return out, decodeErr(err)
		}
		out.Mode = string(s.Mode)
		if s.Customer != nil {
			out.CustomerRef = s.Customer.ID
		}
		if s.Subscription != nil {
			out.SubscriptionRef = s.Subscription.ID
		}
		out.ProfileID = metadataProfileID(s.Metadata)
	case profiles.EventSubscriptionCreated, profiles.EventSubscriptionUpdated, profiles.EventSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return out, decodeErr(err)
		}
		out.SubscriptionRef = s.ID
		out.ProviderStatus = string(s.Status)
		if s.Customer != nil {
			out.CustomerRef = s.Customer.ID
		}
		if s.TrialEnd > 0 {
			t := time.Unix(s.TrialEnd, 0).UTC()
			out.TrialEndsAt = &t
		}
		out.ProfileID = metadataProfileID(s.Metadata)
	case profiles.EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return out, decodeErr(err)
		}
		if inv.Subscription != nil {
			out.SubscriptionRef = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerRef = inv.Customer.ID
		}
	}
	return out, nil
}

func decodeErr(err error) error {
	return domainerr.Wrap(err, domainerr.CodeInvalidInput, "malformed webhook payload")
}

func metadataProfileID(meta map[string]string) int64 {
	id, err := strconv.ParseInt(meta[metaProfileID], 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
