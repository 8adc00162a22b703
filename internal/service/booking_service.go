package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

const (
	defaultCurrency      = "inr"
	defaultNotifyTimeout = 3 * time.Second
)

// BookingRequest is the input to CreateBooking.  Identity fields come from
// the authenticated principal, never from the request body.
type BookingRequest struct {
	UserID    string
	UserEmail string
	UserName  string
	RoomID    string
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    int
}

// BookingService creates reservations and serves booking reads for guests
// and hotel owners.
type BookingService struct {
	inventory     Inventory
	ledger        Ledger
	availability  *AvailabilityService
	notifier      Notifier
	clock         clock.Clock
	currency      string
	notifyTimeout time.Duration
	log           *zap.Logger
	newID         func() string
}

type BookingOption func(*BookingService)

// WithNotifier sets where booking events are published.  Without it
// events are dropped.
func WithNotifier(n Notifier) BookingOption {
	return func(s *BookingService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithCurrency overrides the currency stamped on new reservations.
func WithCurrency(c string) BookingOption {
	return func(s *BookingService) {
		if c != "" {
			s.currency = c
		}
	}
}

// WithNotifyTimeout bounds the publish of a booking event.
func WithNotifyTimeout(d time.Duration) BookingOption {
	return func(s *BookingService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithBookingLogger(l *zap.Logger) BookingOption {
	return func(s *BookingService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewBookingService(inv Inventory, ledger Ledger, clk clock.Clock, opts ...BookingOption) *BookingService {
	s := &BookingService{
		inventory:     inv,
		ledger:        ledger,
		availability:  NewAvailabilityService(ledger),
		notifier:      nopNotifier{},
		clock:         clk,
		currency:      defaultCurrency,
		notifyTimeout: defaultNotifyTimeout,
		log:           zap.NewNop(),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBooking validates the request, prices the stay from the room's
// current nightly rate and writes the reservation through the ledger's
// atomic conditional insert.  Overlapping requests for the same room fail
// with ErrRoomUnavailable.  The booking event is published best-effort
// after the write; its failure never fails the booking.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (res model.Reservation, err error) {
	ctx, span := startSpan(ctx, "booking.create")
	defer func() { endSpan(span, err) }()

	checkIn, checkOut := model.DateOnly(req.CheckIn), model.DateOnly(req.CheckOut)
	switch {
	case req.UserID == "":
		return model.Reservation{}, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	case req.RoomID == "":
		return model.Reservation{}, fmt.Errorf("%w: room is required", ErrInvalidRequest)
	case req.CheckIn.IsZero() || req.CheckOut.IsZero():
		return model.Reservation{}, fmt.Errorf("%w: check-in and check-out dates are required", ErrInvalidRequest)
	case !checkIn.Before(checkOut):
		return model.Reservation{}, fmt.Errorf("%w: check-in must be before check-out", ErrInvalidRequest)
	case req.Guests <= 0:
		return model.Reservation{}, fmt.Errorf("%w: guests must be positive", ErrInvalidRequest)
	}
	span.SetAttributes(
		attribute.String("room.id", req.RoomID),
		attribute.String("booking.check_in", checkIn.Format(time.DateOnly)),
		attribute.String("booking.check_out", checkOut.Format(time.DateOnly)),
	)

	listing, err := s.inventory.Resolve(ctx, req.RoomID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reservation{}, ErrRoomNotFound
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("resolve room: %w", err)
	}
	if !listing.Room.IsAvailable {
		// Withdrawn listings cannot be booked on any date.
		return model.Reservation{}, ErrRoomNotFound
	}
	if listing.Room.NightlyRateCents <= 0 {
		return model.Reservation{}, fmt.Errorf("room %s has non-positive nightly rate", listing.Room.ID)
	}

	available, err := s.availability.IsAvailable(ctx, req.RoomID, checkIn, checkOut)
	if err != nil {
		return model.Reservation{}, err
	}
	if !available {
		return model.Reservation{}, ErrRoomUnavailable
	}

	nights := model.NightsBetween(checkIn, checkOut)
	now := s.clock.Now()
	candidate := model.Reservation{
		ID:              s.newID(),
		UserID:          req.UserID,
		RoomID:          listing.Room.ID,
		HotelID:         listing.Hotel.ID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		TotalPriceCents: listing.Room.NightlyRateCents * int64(nights),
		Currency:        s.currency,
		Status:          model.ReservationConfirmed,
		PaymentStatus:   model.PaymentUnpaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	res, err = s.ledger.InsertIfAvailable(ctx, candidate)
	if errors.Is(err, repository.ErrConflict) {
		return model.Reservation{}, ErrRoomUnavailable
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	span.SetAttributes(attribute.String("reservation.id", res.ID))
	s.log.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.String("user_id", res.UserID),
		zap.String("room_id", res.RoomID),
		zap.Int("nights", nights),
		zap.Int64("total_price_cents", res.TotalPriceCents),
	)

	s.notify(ctx, req, listing, res)
	return res, nil
}

// notify publishes the booking event with its own deadline.  The request
// context may be cancelled once the response is written, so only its
// values are inherited.
func (s *BookingService) notify(ctx context.Context, req BookingRequest, listing model.RoomListing, res model.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	ev := queue.BookingConfirmedEvent{
		ReservationID:   res.ID,
		UserID:          res.UserID,
		UserEmail:       req.UserEmail,
		UserName:        req.UserName,
		RoomID:          res.RoomID,
		RoomType:        listing.Room.RoomType,
		HotelID:         res.HotelID,
		HotelName:       listing.Hotel.Name,
		HotelAddress:    listing.Hotel.Address,
		CheckIn:         res.CheckIn.Format(time.DateOnly),
		CheckOut:        res.CheckOut.Format(time.DateOnly),
		Nights:          res.Nights(),
		Guests:          res.Guests,
		TotalPriceCents: res.TotalPriceCents,
		Currency:        res.Currency,
		ConfirmedAt:     res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.notifier.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.Warn("booking notification failed",
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
	}
}

// IsAvailable exposes the availability check used before booking.
func (s *BookingService) IsAvailable(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	return s.availability.IsAvailable(ctx, roomID, checkIn, checkOut)
}

// Room returns a bookable room listing.
func (s *BookingService) Room(ctx context.Context, roomID string) (model.RoomListing, error) {
	l, err := s.inventory.Resolve(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.RoomListing{}, ErrRoomNotFound
	}
	return l, err
}

// BookingView is a reservation joined with the room and hotel it refers
// to, as shown in a guest's booking list and an owner's dashboard.  Room
// and Hotel are nil when the inventory row no longer exists.
type BookingView struct {
	model.Reservation
	Room  *model.Room  `json:"room,omitempty"`
	Hotel *model.Hotel `json:"hotel,omitempty"`
}

// UserBookings lists the caller's reservations, newest first, each
// populated with its room and hotel.
func (s *BookingService) UserBookings(ctx context.Context, userID string) ([]BookingView, error) {
	list, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return s.withListings(ctx, list)
}

// withListings joins each reservation with its room and hotel.  Rooms are
// resolved once per list; a room that no longer exists leaves the view's
// Room and Hotel nil.
func (s *BookingService) withListings(ctx context.Context, list []model.Reservation) ([]BookingView, error) {
	cache := map[string]*model.RoomListing{}
	out := make([]BookingView, 0, len(list))
	for _, r := range list {
		v := BookingView{Reservation: r}
		l, ok := cache[r.RoomID]
		if !ok {
			resolved, err := s.inventory.Resolve(ctx, r.RoomID)
			switch {
			case err == nil:
				l = &resolved
			case errors.Is(err, repository.ErrNotFound):
			default:
				return nil, fmt.Errorf("resolve room %s: %w", r.RoomID, err)
			}
			cache[r.RoomID] = l
		}
		if l != nil {
			room, hotel := l.Room, l.Hotel
			v.Room, v.Hotel = &room, &hotel
		}
		out = append(out, v)
	}
	return out, nil
}

// UserBooking returns one of the caller's reservations.  Reservations of
// other users are reported as not found.
func (s *BookingService) UserBooking(ctx context.Context, userID, reservationID string) (model.Reservation, error) {
	res, err := s.ledger.FindByID(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	if res.UserID != userID {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, nil
}

// Dashboard summarises reservation activity for an owner's hotel.
type Dashboard struct {
	Hotel             model.Hotel   `json:"hotel"`               // the owner's hotel
	TotalBookings     int           `json:"total_bookings"`      // every reservation, cancelled included
	TotalRevenueCents int64         `json:"total_revenue_cents"` // non-cancelled reservations
	PaidRevenueCents  int64         `json:"paid_revenue_cents"`  // reservations whose payment settled
	Bookings          []BookingView `json:"bookings"`            // newest first, with room and hotel
}

// OwnerDashboard loads the owner's hotel and aggregates its reservations.
// Revenue counts every non-cancelled reservation; PaidRevenueCents only
// those that settled.
func (s *BookingService) OwnerDashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	hotel, err := s.inventory.HotelByOwner(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return Dashboard{}, ErrHotelNotFound
	}
	if err != nil {
		return Dashboard{}, fmt.Errorf("find hotel: %w", err)
	}
	list, err := s.ledger.ListByHotel(ctx, hotel.ID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list hotel bookings: %w", err)
	}
	views, err := s.withListings(ctx, list)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Hotel: hotel, TotalBookings: len(list), Bookings: views}
	for _, r := range list {
		if r.Status == model.ReservationCancelled {
			continue
		}
		d.TotalRevenueCents += r.TotalPriceCents
		if r.PaymentStatus == model.PaymentPaid {
			d.PaidRevenueCents += r.TotalPriceCents
		}
	}
	return d, nil
}
