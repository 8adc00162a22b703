package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RegisterOwner registers the hotel owner's dashboard.  Routes require a
// valid JWT with the OWNER role.
func RegisterOwner(e *echo.Echo, b *handler.BookingHandler, auth Auth) {
	g := e.Group(
		"/v1/owner",
		middleware.JWTAuth(auth.Secret, auth.Issuer),
		middleware.RequireRole(model.RoleOwner),
	)
	g.GET("/bookings", b.OwnerBookings)
}
