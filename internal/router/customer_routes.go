package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RegisterCustomer registers guest booking and payment endpoints under
// /v1.  All routes require a valid JWT with the CUSTOMER role.  The
// limiter applies to the write endpoints only.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, auth Auth, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(auth.Secret, auth.Issuer),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/bookings", b.Create, limiter)
	g.GET("/bookings", b.List)
	g.GET("/bookings/:id", b.Get)
	g.POST("/bookings/:id/payment", p.Begin, limiter)
}
