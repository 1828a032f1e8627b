package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
)

const maxWebhookBody = 512 << 10

// EventParser verifies a provider delivery and reduces it to a
// subscription event.
type EventParser interface {
	Parse(payload []byte, signature string) (profiles.SubscriptionEvent, error)
}

// SubscriptionApplier is the part of the profiles service the webhook needs.
type SubscriptionApplier interface {
	ApplySubscriptionEvent(ctx context.Context, ev profiles.SubscriptionEvent) error
}

type WebhookHandler struct {
	parser  EventParser
	applier SubscriptionApplier
}

func NewWebhookHandler(p EventParser, a SubscriptionApplier) *WebhookHandler {
	return &WebhookHandler{parser: p, applier: a}
}

// Stripe accepts a signed delivery. Failures to apply answer 5xx so the
// provider retries; applying is idempotent.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(w, domainerr.CodeInvalidInput, "payload too large")
			return
		}
		writeErrorCode(w, domainerr.CodeInvalidInput, "unreadable payload")
		return
	}

	ev, err := h.parser.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.WarnContext(r.Context(), "webhook rejected", slog.Any("err", err))
		writeError(w, r, err)
		return
	}
	if err := h.applier.ApplySubscriptionEvent(r.Context(), ev); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
