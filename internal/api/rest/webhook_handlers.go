package rest

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/values"
	"github.com/fairdial/leadline-backend/internal/infrastructure/telemetry"
)

const webhookSecretHeader = "X-Webhook-Secret"

// handleLeadWebhook ingests a lead from an external form provider and
// returns the routing decision. Redeliveries of the same (phone,
// timestamp) pair get the original decision back with duplicate set.
func (h *Handler) handleLeadWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.verifyWebhookSecret(r) {
		slog.WarnContext(ctx, "webhook delivery rejected",
			"reason", "invalid_secret",
			"remote_addr", clientIP(r))
		respondError(w, r, errors.NewUnauthorizedError("invalid webhook secret"))
		return
	}

	if !h.admitWebhook(w, r) {
		return
	}

	var req LeadWebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.validate(req); err != nil {
		respondError(w, r, err)
		return
	}

	phone, err := values.NewPhone(req.Phone)
	if err != nil {
		respondError(w, r, errors.NewValidationError("INVALID_PHONE", err.Error()))
		return
	}

	l, err := lead.NewLead(phone, req.Timestamp)
	if err != nil {
		respondError(w, r, errors.NewValidationError("INVALID_LEAD", err.Error()))
		return
	}
	l.Name = req.Name
	l.LeadSource = req.LeadSource
	l.City = req.City
	l.State = req.State
	if req.Metadata != nil {
		l.Metadata = req.Metadata
	}

	ctx, span := h.tracer.Start(ctx, "webhook.assign_lead")
	outcome, err := h.assignments.AssignLead(ctx, l)
	telemetry.WithSpanError(span, err)
	span.End()
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if outcome.Duplicate {
		status = http.StatusOK
	}
	respond(w, r, status, newLeadResponse(outcome))
}

func (h *Handler) verifyWebhookSecret(r *http.Request) bool {
	if h.webhookAuth.Secret == "" {
		return true
	}
	got := r.Header.Get(webhookSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookAuth.Secret)) == 1
}

// admitWebhook applies the per-source rate limit. Limiter outages admit
// the request; losing leads costs more than a burst.
func (h *Handler) admitWebhook(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil || h.webhookAuth.RatePerMinute <= 0 {
		return true
	}

	ctx := r.Context()
	key := "webhook:" + clientIP(r)
	allowed, err := h.limiter.Allow(ctx, key, h.webhookAuth.RatePerMinute, time.Minute)
	if err != nil {
		slog.WarnContext(ctx, "rate limiter unavailable, admitting request", "error", err)
		return true
	}
	if !allowed {
		w.Header().Set("Retry-After", "60")
		respondError(w, r, errors.NewRateLimitError("webhook delivery rate exceeded"))
		return false
	}
	return true
}
