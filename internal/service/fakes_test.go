package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// fakeLedger mirrors ReservationRepo's semantics in memory.  The mutex
// plays the role of the per-room row lock.
type fakeLedger struct {
	mu      sync.Mutex
	rows    map[string]model.Reservation
	inserts int
	// failUpdates makes the next n UpdatePaymentStatus calls return
	// ErrConflict without touching the row.
	failUpdates int
}

func newFakeLedger(existing ...model.Reservation) *fakeLedger {
	l := &fakeLedger{rows: map[string]model.Reservation{}}
	for _, r := range existing {
		l.rows[r.ID] = r
	}
	return l
}

func (l *fakeLedger) overlapLocked(roomID string, in, out time.Time) bool {
	for _, r := range l.rows {
		if r.RoomID == roomID && r.Status != model.ReservationCancelled && model.Overlaps(r.CheckIn, r.CheckOut, in, out) {
			return true
		}
	}
	return false
}

func (l *fakeLedger) InsertIfAvailable(_ context.Context, res model.Reservation) (model.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.overlapLocked(res.RoomID, res.CheckIn, res.CheckOut) {
		return model.Reservation{}, repository.ErrConflict
	}
	if _, dup := l.rows[res.ID]; dup {
		return model.Reservation{}, fmt.Errorf("duplicate id %s", res.ID)
	}
	l.rows[res.ID] = res
	l.inserts++
	return res, nil
}

func (l *fakeLedger) HasOverlap(_ context.Context, roomID string, in, out time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overlapLocked(roomID, in, out), nil
}

func (l *fakeLedger) FindByID(_ context.Context, id string) (model.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (l *fakeLedger) list(match func(model.Reservation) bool) []model.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range l.rows {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (l *fakeLedger) ListByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	return l.list(func(r model.Reservation) bool { return r.UserID == userID }), nil
}

func (l *fakeLedger) ListByHotel(_ context.Context, hotelID string) ([]model.Reservation, error) {
	return l.list(func(r model.Reservation) bool { return r.HotelID == hotelID }), nil
}

func (l *fakeLedger) UpdatePaymentStatus(_ context.Context, id string, from, to model.PaymentStatus, ref string) (model.Reservation, error) {
	if from != to && !from.CanTransitionTo(to) {
		return model.Reservation{}, repository.ErrInvalidTransition
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failUpdates > 0 {
		l.failUpdates--
		return model.Reservation{}, repository.ErrConflict
	}
	r, ok := l.rows[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	if r.PaymentStatus == from {
		r.PaymentStatus = to
		if ref != "" {
			r.PaymentRef = &ref
		}
		l.rows[id] = r
		return r, nil
	}
	if r.PaymentStatus == to {
		return r, nil
	}
	return model.Reservation{}, repository.ErrConflict
}

func (l *fakeLedger) status(id string) model.PaymentStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[id].PaymentStatus
}

type fakeInventory struct {
	rooms  map[string]model.RoomListing
	hotels map[string]model.Hotel
}

func newFakeInventory(listings ...model.RoomListing) *fakeInventory {
	inv := &fakeInventory{rooms: map[string]model.RoomListing{}, hotels: map[string]model.Hotel{}}
	for _, l := range listings {
		inv.rooms[l.Room.ID] = l
		inv.hotels[l.Hotel.ID] = l.Hotel
	}
	return inv
}

func (f *fakeInventory) Resolve(_ context.Context, roomID string) (model.RoomListing, error) {
	l, ok := f.rooms[roomID]
	if !ok {
		return model.RoomListing{}, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeInventory) Hotel(_ context.Context, hotelID string) (model.Hotel, error) {
	h, ok := f.hotels[hotelID]
	if !ok {
		return model.Hotel{}, repository.ErrNotFound
	}
	return h, nil
}

func (f *fakeInventory) HotelByOwner(_ context.Context, ownerID string) (model.Hotel, error) {
	for _, h := range f.hotels {
		if h.OwnerID == ownerID {
			return h, nil
		}
	}
	return model.Hotel{}, repository.ErrNotFound
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (n *recordingNotifier) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return fmt.Errorf("publish without deadline")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []CheckoutRequest
	err      error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return CheckoutSession{}, p.err
	}
	p.requests = append(p.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(p.requests))
	return CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

func seaside() model.RoomListing {
	return model.RoomListing{
		Room:  model.Room{ID: "room-a", HotelID: "hotel-1", RoomType: "Double Bed", NightlyRateCents: 1000, IsAvailable: true},
		Hotel: model.Hotel{ID: "hotel-1", OwnerID: "owner-1", Name: "Seaside", Address: "1 Beach Rd", City: "Goa"},
	}
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
