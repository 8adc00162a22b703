package service

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
)

// Inventory resolves rooms and hotels.  Implemented by
// repository.InventoryRepo.
type Inventory interface {
	Resolve(ctx context.Context, roomID string) (model.RoomListing, error)
	Hotel(ctx context.Context, hotelID string) (model.Hotel, error)
	HotelByOwner(ctx context.Context, ownerID string) (model.Hotel, error)
}

// Ledger is the reservation store.  Implemented by
// repository.ReservationRepo; see that type for the exact semantics.
type Ledger interface {
	InsertIfAvailable(ctx context.Context, res model.Reservation) (model.Reservation, error)
	HasOverlap(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error)
	FindByID(ctx context.Context, id string) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListByHotel(ctx context.Context, hotelID string) ([]model.Reservation, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to model.PaymentStatus, paymentRef string) (model.Reservation, error)
}

// Notifier hands booking events to the delivery pipeline.
type Notifier interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// CheckoutRequest describes a hosted checkout session for one reservation.
type CheckoutRequest struct {
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is the provider's handle for a created session.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentProvider creates checkout sessions.  Webhook verification lives
// with the HTTP handler because it needs the raw request.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

type nopNotifier struct{}

func (nopNotifier) PublishBookingConfirmed(context.Context, queue.BookingConfirmedEvent) error {
	return nil
}
