// Package payment adapts Stripe Checkout to the service layer's
// PaymentProvider and turns signed webhooks into payment outcomes.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

var (
	// ErrInvalidSignature is returned for webhooks that fail signature
	// verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned for verified webhooks whose payload
	// cannot be used.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// StripeProvider creates Checkout sessions and verifies webhooks.
type StripeProvider struct {
	sessions      *session.Client
	webhookSecret string
}

// NewStripeProvider builds a provider from cfg.  baseURL overrides the API
// endpoint and is empty outside tests.
func NewStripeProvider(cfg config.PaymentConfig, baseURL string) *StripeProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if baseURL != "" {
		bc.URL = stripe.String(baseURL)
	}
	return &StripeProvider{
		sessions:      &session.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, bc), Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateCheckoutSession opens a one-line-item payment session.  The
// reservation metadata is attached to the session so webhooks can be
// matched back to it.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (service.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if id := req.Metadata[service.MetadataReservationID]; id != "" {
		params.ClientReferenceID = stripe.String(id)
	}
	s, err := p.sessions.New(params)
	if err != nil {
		return service.CheckoutSession{}, fmt.Errorf("stripe checkout: %w", err)
	}
	if s.URL == "" {
		return service.CheckoutSession{}, fmt.Errorf("stripe checkout: session %s has no url", s.ID)
	}
	return service.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// WebhookEvent is a verified provider callback.  Relevant is false for
// event types that do not carry a payment outcome.
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	ReservationID string
	Outcome       service.PaymentOutcome
	Relevant      bool
}

// ParseWebhook verifies the Stripe-Signature header over payload and maps
// checkout events to outcomes:
//
//	checkout.session.completed (paid)      -> succeeded
//	checkout.session.async_payment_succeeded -> succeeded
//	checkout.session.async_payment_failed    -> failed
//	checkout.session.expired                 -> failed
//
// A completed session that is still unpaid (delayed payment methods) is
// not relevant yet; the async events settle it.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if p.webhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}

	var outcome service.PaymentOutcome
	switch out.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = service.OutcomeSucceeded
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		outcome = service.OutcomeFailed
	default:
		return out, nil
	}
	if ev.Data == nil {
		return WebhookEvent{}, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, ev.ID)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	out.SessionID = cs.ID
	out.ReservationID = cs.Metadata[service.MetadataReservationID]
	if out.ReservationID == "" {
		out.ReservationID = cs.ClientReferenceID
	}
	if out.ReservationID == "" {
		return WebhookEvent{}, fmt.Errorf("%w: session %s has no reservation id", ErrMalformedEvent, cs.ID)
	}
	if out.Type == "checkout.session.completed" && cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return out, nil
	}
	out.Outcome = outcome
	out.Relevant = true
	return out, nil
}
