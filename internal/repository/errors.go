// Package repository holds the MySQL-backed stores used by the booking
// core: the read-only inventory reader and the reservation ledger.  The
// sentinel errors below let the service layer tell failure scenarios apart
// with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write loses: the requested
// dates overlap an existing reservation, or a reservation's payment
// status no longer matches the expected prior value.
var ErrConflict = errors.New("conflict")

// ErrInvalidTransition is returned when a payment status change is not
// permitted by the payment state machine.
var ErrInvalidTransition = errors.New("invalid payment status transition")
