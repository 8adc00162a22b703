package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

const maxWebhookBytes = 64 << 10

// PaymentService is the part of service.PaymentService used over HTTP.
type PaymentService interface {
	BeginPayment(ctx context.Context, reservationID, userID, origin string) (service.PaymentSession, error)
	ConfirmPayment(ctx context.Context, reservationID string, outcome service.PaymentOutcome, paymentRef string) (service.ConfirmResult, error)
}

// WebhookParser verifies and decodes provider callbacks.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payment.WebhookEvent, error)
}

// PaymentHandler starts checkout for a guest's booking and applies the
// provider's webhook callbacks to the ledger.  Begin sits behind JWT auth;
// Webhook is public and trusts only the signature.
type PaymentHandler struct {
	svc    PaymentService // checkout sessions and payment reconciliation
	parser WebhookParser  // nil when no provider is configured
	log    *zap.Logger    // records rejected and processed callbacks
}

// NewPaymentHandler wires the payment endpoints.  parser may be nil when
// payments are not configured; the webhook then answers 502.
func NewPaymentHandler(svc PaymentService, parser WebhookParser, log *zap.Logger) *PaymentHandler {
	if svc == nil {
		panic("nil payment service passed to NewPaymentHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{svc: svc, parser: parser, log: log}
}

// Begin handles POST /v1/bookings/:id/payment and returns the checkout
// URL.  Return URLs are built from the request's Origin header, falling
// back to PUBLIC_URL.  Paying for another user's booking answers 403
// forbidden, an already paid booking 409, and a provider failure 502.
// A successful call moves the reservation to PENDING.
func (h *PaymentHandler) Begin(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}
	sess, err := h.svc.BeginPayment(c.Request().Context(), c.Param("id"), p.UserID, requestOrigin(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"reservation_id": sess.ReservationID,
		"session_id":     sess.SessionID,
		"url":            sess.URL,
	})
}

// Webhook handles POST /v1/payments/webhook.  Unverified or malformed
// callbacks get 400.  Storage failures get 500 so the provider redelivers.
// Everything else, including duplicates and events we do not act on, is
// acknowledged with 200.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	if h.parser == nil {
		return writeError(c, h.log, service.ErrPaymentProvider)
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, CodeInvalidRequest, "unreadable body")
	}
	if len(payload) > maxWebhookBytes {
		return fail(c, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "payload too large")
	}

	ev, err := h.parser.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn("webhook rejected", zap.Error(err))
		msg := "invalid webhook"
		if errors.Is(err, payment.ErrInvalidSignature) {
			msg = "signature verification failed"
		}
		return fail(c, http.StatusBadRequest, CodeInvalidRequest, msg)
	}
	if !ev.Relevant {
		h.log.Debug("webhook event skipped", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return success(c, http.StatusOK, echo.Map{"received": true, "status": service.ConfirmIgnored})
	}

	res, err := h.svc.ConfirmPayment(c.Request().Context(), ev.ReservationID, ev.Outcome, ev.SessionID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return fail(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		}
		h.log.Error("webhook processing failed",
			zap.String("event_id", ev.ID),
			zap.String("reservation_id", ev.ReservationID),
			zap.Error(err),
		)
		return fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
	h.log.Info("webhook processed",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("reservation_id", ev.ReservationID),
		zap.String("status", string(res.Status)),
	)
	return success(c, http.StatusOK, echo.Map{"received": true, "status": res.Status})
}
