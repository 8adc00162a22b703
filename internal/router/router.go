package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/handler"
)

// Auth carries the identity settings shared by the protected groups.
type Auth struct {
	Secret string
	Issuer string
}

// RegisterRoutes registers the unauthenticated operational routes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers guest-facing inventory reads.  cache wraps the
// room read only; availability must always hit the ledger.
func RegisterPublic(e *echo.Echo, h *handler.BookingHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/rooms/:id", h.GetRoom, cache)
	e.GET("/v1/rooms/:id/availability", h.Availability)
}

// RegisterWebhooks registers provider callbacks.  They authenticate by
// signature, so no JWT middleware applies.
func RegisterWebhooks(e *echo.Echo, p *handler.PaymentHandler) {
	e.POST("/v1/payments/webhook", p.Webhook)
}
