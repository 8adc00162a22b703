package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/service"
)

// Stable error codes returned in the "error" field of failed responses.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeRoomNotFound        = "room_not_found"
	CodeRoomUnavailable     = "room_unavailable"
	CodeReservationNotFound = "reservation_not_found"
	CodeAlreadyPaid         = "already_paid"
	CodePaymentProvider     = "payment_provider_error"
	CodeConflict            = "conflict"
	CodeForbidden           = "forbidden"
	CodeHotelNotFound       = "hotel_not_found"
	CodeUnauthorized        = "unauthorized"
	CodeInternal            = "internal_error"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest},
	{service.ErrRoomNotFound, http.StatusNotFound, CodeRoomNotFound},
	{service.ErrRoomUnavailable, http.StatusConflict, CodeRoomUnavailable},
	{service.ErrReservationNotFound, http.StatusNotFound, CodeReservationNotFound},
	{service.ErrAlreadyPaid, http.StatusConflict, CodeAlreadyPaid},
	{service.ErrPaymentProvider, http.StatusBadGateway, CodePaymentProvider},
	{service.ErrConflict, http.StatusConflict, CodeConflict},
	{service.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{service.ErrHotelNotFound, http.StatusNotFound, CodeHotelNotFound},
}

// success writes {"success": true, ...body}.
func success(c echo.Context, status int, body echo.Map) error {
	if body == nil {
		body = echo.Map{}
	}
	body["success"] = true
	return c.JSON(status, body)
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": code, "message": msg})
}

// writeError maps a service error to its HTTP status and code.  Anything
// unrecognised is logged and reported as internal_error without details.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			msg := err.Error()
			if m.status == http.StatusBadGateway {
				msg = m.err.Error()
			}
			return fail(c, m.status, m.code, msg)
		}
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}

func unauthorized(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day as a UTC midnight.  A timestamp's day is read in its own
// offset: 2024-06-01T00:00:00+05:30 is June 1, not May 31.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// requestOrigin returns the scheme and host of the Origin header, or ""
// when it is missing or not an absolute http(s) URL.
func requestOrigin(c echo.Context) string {
	raw := c.Request().Header.Get(echo.HeaderOrigin)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
