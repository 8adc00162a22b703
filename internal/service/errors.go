package service

import "errors"

// Errors returned by the booking and payment use cases.  Handlers map each
// one to a stable error code; see handler/response.go.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomUnavailable     = errors.New("room unavailable for the requested dates")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyPaid         = errors.New("reservation already paid")
	ErrPaymentProvider     = errors.New("payment provider error")
	ErrConflict            = errors.New("conflicting concurrent update")
	ErrForbidden           = errors.New("forbidden")
	ErrHotelNotFound       = errors.New("no hotel found")
)
