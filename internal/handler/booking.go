package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// BookingService is the part of service.BookingService used over HTTP.
type BookingService interface {
	Room(ctx context.Context, roomID string) (model.RoomListing, error)
	IsAvailable(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error)
	CreateBooking(ctx context.Context, req service.BookingRequest) (model.Reservation, error)
	UserBookings(ctx context.Context, userID string) ([]service.BookingView, error)
	UserBooking(ctx context.Context, userID, reservationID string) (model.Reservation, error)
	OwnerDashboard(ctx context.Context, ownerID string) (service.Dashboard, error)
}

// BookingHandler serves room reads, guest bookings and the owner
// dashboard.  All methods assume that JWT authentication and the role
// check for the route have already run in middleware; a missing principal
// on a guest or owner route is answered with 401.  Errors from the
// service are mapped to status codes and stable error codes by
// writeError, so internal details never reach the client.
type BookingHandler struct {
	svc BookingService // availability, ledger reads and booking creation
	log *zap.Logger    // logs 5xx causes; never nil after construction
}

// NewBookingHandler constructs a BookingHandler.  svc must be non-nil; a
// nil logger is replaced with a no-op one.
func NewBookingHandler(svc BookingService, log *zap.Logger) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{svc: svc, log: log}
}

// GetRoom handles GET /v1/rooms/:id.  It is public and returns the room
// together with its hotel.  An unknown or withdrawn room answers 404
// room_not_found.
func (h *BookingHandler) GetRoom(c echo.Context) error {
	l, err := h.svc.Room(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"room": l.Room, "hotel": l.Hotel})
}

// Availability handles GET /v1/rooms/:id/availability?check_in=&check_out=.
// Both dates are required and accept YYYY-MM-DD or an RFC 3339 timestamp,
// whose calendar day is taken in its own offset.  The response echoes the
// normalised dates and reports available=false for a withdrawn room even
// when no reservation overlaps.  The answer is advisory: a later booking
// can still lose the race in the ledger.
func (h *BookingHandler) Availability(c echo.Context) error {
	in, okIn := parseDate(c.QueryParam("check_in"))
	out, okOut := parseDate(c.QueryParam("check_out"))
	if !okIn || !okOut {
		return fail(c, http.StatusBadRequest, CodeInvalidRequest, "check_in and check_out must be YYYY-MM-DD dates")
	}
	ctx := c.Request().Context()
	roomID := c.Param("id")
	l, err := h.svc.Room(ctx, roomID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	available, err := h.svc.IsAvailable(ctx, roomID, in, out)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"room_id":   roomID,
		"check_in":  model.DateOnly(in).Format(time.DateOnly),
		"check_out": model.DateOnly(out).Format(time.DateOnly),
		"available": available && l.Room.IsAvailable,
	})
}

// createBookingRequest is the body of POST /v1/bookings.  Identity fields
// sent by the client are ignored.
type createBookingRequest struct {
	RoomID   string `json:"room_id"`   // rooms.id to book
	CheckIn  string `json:"check_in"`  // first night, YYYY-MM-DD
	CheckOut string `json:"check_out"` // departure day, exclusive
	Guests   int    `json:"guests"`    // party size, at least 1
}

// Create handles POST /v1/bookings.  The guest is always the caller:
// user id, email and name come from the verified token, and the body only
// names the room, the dates and the party size.  On success it returns 201
// Created with the reservation (payment_status UNPAID) and a Location
// header pointing at /v1/bookings/:id.  Invalid dates or an empty interval
// answer 400 invalid_request, an unknown room 404 room_not_found, and an
// overlapping stay 409 room_unavailable.  The confirmation event is
// published by the service after commit and never affects the response.
func (h *BookingHandler) Create(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
	}
	in, okIn := parseDate(body.CheckIn)
	out, okOut := parseDate(body.CheckOut)
	if !okIn || !okOut {
		return fail(c, http.StatusBadRequest, CodeInvalidRequest, "check_in and check_out must be YYYY-MM-DD dates")
	}

	res, err := h.svc.CreateBooking(c.Request().Context(), service.BookingRequest{
		UserID:    p.UserID,
		UserEmail: p.Email,
		UserName:  p.Name,
		RoomID:    body.RoomID,
		CheckIn:   in,
		CheckOut:  out,
		Guests:    body.Guests,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/v1/bookings/%s", res.ID))
	return success(c, http.StatusCreated, echo.Map{"reservation": res})
}

// List handles GET /v1/bookings.  It returns the caller's bookings,
// newest first, each joined with its room and hotel, plus a count.  A
// booking whose room has since been removed is listed without them.
func (h *BookingHandler) List(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}
	views, err := h.svc.UserBookings(c.Request().Context(), p.UserID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"bookings": views, "count": len(views)})
}

// Get handles GET /v1/bookings/:id.  A reservation that belongs to
// another user answers 404 reservation_not_found, the same as an unknown
// id, so other guests' ids cannot be guessed.
func (h *BookingHandler) Get(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}
	res, err := h.svc.UserBooking(c.Request().Context(), p.UserID, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"reservation": res})
}

// OwnerBookings handles GET /v1/owner/bookings for the OWNER role.  It
// returns the owner's hotel, booking and revenue totals, and every
// reservation of that hotel joined with its room.  An owner without a
// hotel gets 404 hotel_not_found.
func (h *BookingHandler) OwnerBookings(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}
	d, err := h.svc.OwnerDashboard(c.Request().Context(), p.UserID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"hotel":               d.Hotel,
		"total_bookings":      d.TotalBookings,
		"total_revenue_cents": d.TotalRevenueCents,
		"paid_revenue_cents":  d.PaidRevenueCents,
		"bookings":            d.Bookings,
	})
}
