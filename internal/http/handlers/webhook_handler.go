// Package handlers implements the HTTP endpoints of the webhook receiver.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/http/middleware"
	"github.com/nexussoftworks/go-keybot/internal/repo"
	"github.com/nexussoftworks/go-keybot/internal/services"
)

// maxEventBytes caps the inbound webhook body size.
const maxEventBytes = 1 << 20

// PaymentProcessor is the payment-side contract the webhook handler needs.
// *services.PaymentService satisfies it.
type PaymentProcessor interface {
	VerifySignature(ctx context.Context, hdr http.Header, rawEvent []byte) (bool, error)
	HandleEvent(ctx context.Context, ev services.WebhookEvent)
}

// Handler carries the dependencies of all HTTP endpoints.
type Handler struct {
	DB       *gorm.DB
	Payments PaymentProcessor
}

// New constructs the endpoint handler set.
func New(db *gorm.DB, payments PaymentProcessor) *Handler {
	return &Handler{DB: db, Payments: payments}
}

// PaymentWebhook receives provider order-lifecycle events.
//
// Pipeline: read → verify signature (401 on failure, fail-closed) → decode →
// dedup by event ID (duplicates are acknowledged without side effects) →
// capture-and-grant. The provider retries on non-2xx, so only verification
// failures and our own internal errors are non-200.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		middleware.CountWebhookEvent("rejected")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	verified, err := h.Payments.VerifySignature(c.Request.Context(), c.Request.Header, raw)
	if err != nil {
		middleware.CountWebhookEvent("failed")
		lg.Error().Err(err).Msg("webhook signature verification errored")
		fail(c, http.StatusInternalServerError, ErrCodeVerifyFailed, "signature verification unavailable")
		return
	}
	if !verified {
		middleware.CountWebhookEvent("rejected")
		lg.Warn().Msg("webhook signature verification failed")
		fail(c, http.StatusUnauthorized, ErrCodeInvalidSignature, "webhook signature verification failed")
		return
	}

	var ev services.WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.ID == "" {
		middleware.CountWebhookEvent("rejected")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed event")
		return
	}

	if !ev.Actionable() {
		middleware.CountWebhookEvent("ignored")
		ok(c, gin.H{"status": "ignored"})
		return
	}

	orderID, _ := services.OrderRef(ev.Resource)
	if err := repo.MarkEventProcessed(c.Request.Context(), h.DB, ev.ID, ev.EventType, orderID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			middleware.CountWebhookEvent("duplicate")
			lg.Info().Str("event", ev.ID).Msg("duplicate webhook event acknowledged")
			ok(c, gin.H{"status": "duplicate"})
			return
		}
		middleware.CountWebhookEvent("failed")
		lg.Error().Err(err).Str("event", ev.ID).Msg("webhook dedup write failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "event could not be recorded")
		return
	}

	h.Payments.HandleEvent(c.Request.Context(), ev)
	middleware.CountWebhookEvent("accepted")
	ok(c, gin.H{"status": "processed"})
}

// Healthz is the liveness endpoint: a fixed "ok" body, nothing more.
func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
