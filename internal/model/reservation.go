package model

import "time"

// PaymentStatus is the payment state of a reservation.  It only moves
// forward: UNPAID → PENDING → {PAID, FAILED}.  A FAILED payment may be
// retried (back to PENDING) or settle late (PAID).  PAID is terminal.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// paymentTransitions extends the UNPAID → PENDING → {PAID, FAILED} chain.
// The provider's webhook can arrive before BeginPayment has written
// PENDING, so UNPAID must accept PAID and FAILED directly.  FAILED → PENDING
// lets the guest retry, and FAILED → PAID accepts a late settlement.
var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentUnpaid:  {PaymentPending: true, PaymentPaid: true, PaymentFailed: true},
	PaymentPending: {PaymentPaid: true, PaymentFailed: true},
	PaymentFailed:  {PaymentPending: true, PaymentPaid: true},
	PaymentPaid:    {},
}

// Valid reports whether s is one of the known payment states.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition.  Staying in the same state is not a transition; callers
// treat it as an idempotent no-op.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return paymentTransitions[s][next]
}

// Terminal reports whether no further transition is possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid
}

// ReservationStatus tracks whether a reservation still claims its room.
// Cancellation is handled outside this service; the value exists so the
// overlap rule can ignore cancelled rows.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a claim on a room for the half-open date interval
// [CheckIn, CheckOut).  HotelID is copied from the room when the
// reservation is written and is never re-resolved.
//
// Fields:
//
//	ID              – UUID assigned at creation.
//	UserID          – identity-provider user ID of the guest.
//	RoomID          – reserved room.
//	HotelID         – hotel that owned the room at booking time.
//	CheckIn         – first night (UTC date).
//	CheckOut        – departure date; not occupied.
//	Guests          – number of guests, at least one.
//	TotalPriceCents – nightly rate × nights, fixed at creation.
//	Currency        – ISO currency code used for payment.
//	Status          – CONFIRMED or CANCELLED.
//	PaymentStatus   – see PaymentStatus.
//	PaymentRef      – provider checkout session ID (nullable).
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              string            `json:"id"`                    // reservations.id
	UserID          string            `json:"user_id"`               // reservations.user_id
	RoomID          string            `json:"room_id"`               // reservations.room_id
	HotelID         string            `json:"hotel_id"`              // reservations.hotel_id
	CheckIn         time.Time         `json:"check_in"`              // reservations.check_in
	CheckOut        time.Time         `json:"check_out"`             // reservations.check_out
	Guests          int               `json:"guests"`                // reservations.guests
	TotalPriceCents int64             `json:"total_price_cents"`     // reservations.total_price_cents
	Currency        string            `json:"currency"`              // reservations.currency
	Status          ReservationStatus `json:"status"`                // reservations.status
	PaymentStatus   PaymentStatus     `json:"payment_status"`        // reservations.payment_status
	PaymentRef      *string           `json:"payment_ref,omitempty"` // reservations.payment_ref (nullable)
	CreatedAt       time.Time         `json:"created_at"`            // reservations.created_at
	UpdatedAt       time.Time         `json:"updated_at"`            // reservations.updated_at
}

// Nights returns the number of nights covered by the stay.
func (r Reservation) Nights() int {
	return NightsBetween(r.CheckIn, r.CheckOut)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// NightsBetween returns the number of whole calendar days from checkIn to
// checkOut.  It is zero or negative for invalid intervals.  Days are
// counted from Unix seconds because time.Duration saturates after about
// 292 years.
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(DateOnly(checkOut).Unix()/secondsPerDay - DateOnly(checkIn).Unix()/secondsPerDay)
}
