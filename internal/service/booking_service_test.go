package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

var now = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

// steppingClock advances one minute per reading so reservations get
// distinct creation times.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newBookingFixture(opts ...BookingOption) (*BookingService, *fakeLedger, *fakeInventory) {
	ledger := newFakeLedger()
	inv := newFakeInventory(seaside())
	return NewBookingService(inv, ledger, clock.NewFixed(now), opts...), ledger, inv
}

func bookReq(roomID, in, out string, guests int) BookingRequest {
	return BookingRequest{
		UserID: "user-1", UserEmail: "guest@example.com", UserName: "Asha",
		RoomID: roomID, CheckIn: date(in), CheckOut: date(out), Guests: guests,
	}
}

func TestBookingService_CreateBooking_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		req  BookingRequest
	}{
		{"same day", bookReq("room-a", "2024-06-01", "2024-06-01", 1)},
		{"reversed", bookReq("room-a", "2024-06-03", "2024-06-01", 1)},
		{"zero guests", bookReq("room-a", "2024-06-01", "2024-06-02", 0)},
		{"negative guests", bookReq("room-a", "2024-06-01", "2024-06-02", -2)},
		{"missing room", bookReq("", "2024-06-01", "2024-06-02", 1)},
		{"missing user", BookingRequest{RoomID: "room-a", CheckIn: date("2024-06-01"), CheckOut: date("2024-06-02"), Guests: 1}},
		{"missing dates", BookingRequest{UserID: "user-1", RoomID: "room-a", Guests: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, ledger, _ := newBookingFixture()
			_, err := svc.CreateBooking(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Zero(t, ledger.inserts, "invalid requests must never reach the ledger")
		})
	}
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Parallel()

	t.Run("prices nights times nightly rate", func(t *testing.T) {
		svc, _, _ := newBookingFixture(WithCurrency("usd"))
		res, err := svc.CreateBooking(context.Background(), bookReq("room-a", "2024-06-01", "2024-06-03", 2))
		require.NoError(t, err)
		assert.Equal(t, int64(2000), res.TotalPriceCents)
		assert.Equal(t, model.PaymentUnpaid, res.PaymentStatus)
		assert.Equal(t, model.ReservationConfirmed, res.Status)
		assert.Equal(t, "hotel-1", res.HotelID)
		assert.Equal(t, "usd", res.Currency)
		assert.Equal(t, now, res.CreatedAt)
		assert.NotEmpty(t, res.ID)
	})

	t.Run("price holds for any valid interval", func(t *testing.T) {
		svc, _, _ := newBookingFixture()
		start := date("2025-01-01")
		offset := 0
		for nights := 1; nights <= 40; nights += 3 {
			in := start.AddDate(0, 0, offset)
			out := in.AddDate(0, 0, nights)
			offset += nights
			res, err := svc.CreateBooking(context.Background(), BookingRequest{
				UserID: "u", RoomID: "room-a", CheckIn: in, CheckOut: out, Guests: 1,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(nights)*1000, res.TotalPriceCents, "nights=%d", nights)
			assert.Equal(t, nights, res.Nights())
		}
	})

	t.Run("price is exact for stays of centuries", func(t *testing.T) {
		svc, _, _ := newBookingFixture()
		res, err := svc.CreateBooking(context.Background(), bookReq("room-a", "2024-01-01", "2400-01-01", 1))
		require.NoError(t, err)
		assert.Equal(t, 137331, res.Nights())
		assert.Equal(t, int64(137331000), res.TotalPriceCents)
	})

	t.Run("time of day is ignored", func(t *testing.T) {
		svc, _, _ := newBookingFixture()
		req := bookReq("room-a", "2024-06-01", "2024-06-02", 1)
		req.CheckIn = req.CheckIn.Add(15 * time.Hour)
		req.CheckOut = req.CheckOut.Add(9 * time.Hour)
		res, err := svc.CreateBooking(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, date("2024-06-01"), res.CheckIn)
		assert.Equal(t, int64(1000), res.TotalPriceCents)
	})

	t.Run("unknown room", func(t *testing.T) {
		svc, _, _ := newBookingFixture()
		_, err := svc.CreateBooking(context.Background(), bookReq("room-x", "2024-06-01", "2024-06-03", 1))
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("withdrawn room", func(t *testing.T) {
		svc, _, inv := newBookingFixture()
		l := inv.rooms["room-a"]
		l.Room.IsAvailable = false
		inv.rooms["room-a"] = l
		_, err := svc.CreateBooking(context.Background(), bookReq("room-a", "2024-06-01", "2024-06-03", 1))
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("overlap is unavailable, back-to-back is fine", func(t *testing.T) {
		svc, _, _ := newBookingFixture()
		ctx := context.Background()
		_, err := svc.CreateBooking(ctx, bookReq("room-a", "2024-06-01", "2024-06-03", 1))
		require.NoError(t, err)

		_, err = svc.CreateBooking(ctx, bookReq("room-a", "2024-06-02", "2024-06-04", 1))
		assert.ErrorIs(t, err, ErrRoomUnavailable)
		assert.False(t, errors.Is(err, ErrRoomNotFound))

		_, err = svc.CreateBooking(ctx, bookReq("room-a", "2024-06-03", "2024-06-05", 1))
		assert.NoError(t, err)
		_, err = svc.CreateBooking(ctx, bookReq("room-a", "2024-05-30", "2024-06-01", 1))
		assert.NoError(t, err)
	})

	t.Run("notification failure does not fail the booking", func(t *testing.T) {
		n := &recordingNotifier{err: errors.New("broker down")}
		svc, ledger, _ := newBookingFixture(WithNotifier(n))
		res, err := svc.CreateBooking(context.Background(), bookReq("room-a", "2024-06-01", "2024-06-03", 2))
		require.NoError(t, err)
		assert.Equal(t, 1, ledger.inserts)
		require.Len(t, n.events, 1)
		ev := n.events[0]
		assert.Equal(t, res.ID, ev.ReservationID)
		assert.Equal(t, "guest@example.com", ev.UserEmail)
		assert.Equal(t, "Seaside", ev.HotelName)
		assert.Equal(t, "1 Beach Rd", ev.HotelAddress)
		assert.Equal(t, "2024-06-01", ev.CheckIn)
		assert.Equal(t, "2024-06-03", ev.CheckOut)
		assert.Equal(t, 2, ev.Nights)
		assert.Equal(t, int64(2000), ev.TotalPriceCents)
	})

	t.Run("notification survives a cancelled request", func(t *testing.T) {
		n := &recordingNotifier{}
		svc, _, _ := newBookingFixture(WithNotifier(n), WithNotifyTimeout(time.Second))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		// The fakes ignore cancellation; only the publish context matters.
		_, err := svc.CreateBooking(ctx, bookReq("room-a", "2024-06-01", "2024-06-03", 2))
		require.NoError(t, err)
		assert.Len(t, n.events, 1)
	})
}

func TestBookingService_ConcurrentOverlappingBookings(t *testing.T) {
	t.Parallel()

	svc, ledger, _ := newBookingFixture()
	const n = 16
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Every interval contains 2024-06-02.
			in := date("2024-06-01").AddDate(0, 0, i%2)
			_, err := svc.CreateBooking(context.Background(), BookingRequest{
				UserID: "u", RoomID: "room-a", CheckIn: in, CheckOut: in.AddDate(0, 0, 2), Guests: 1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrRoomUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, unavailable)
	assert.Equal(t, 1, ledger.inserts)
}

func TestBookingService_Reads(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	other := model.RoomListing{
		Room:  model.Room{ID: "room-b", HotelID: "hotel-2", RoomType: "Suite", NightlyRateCents: 5000, IsAvailable: true},
		Hotel: model.Hotel{ID: "hotel-2", OwnerID: "owner-2", Name: "Hillside"},
	}
	inv := newFakeInventory(seaside(), other)
	svc := NewBookingService(inv, ledger, &steppingClock{t: now})
	ctx := context.Background()

	first, err := svc.CreateBooking(ctx, bookReq("room-a", "2024-06-01", "2024-06-03", 1))
	require.NoError(t, err)
	second, err := svc.CreateBooking(ctx, bookReq("room-b", "2024-06-01", "2024-06-02", 1))
	require.NoError(t, err)
	third, err := svc.CreateBooking(ctx, BookingRequest{UserID: "user-2", RoomID: "room-a", CheckIn: date("2024-07-01"), CheckOut: date("2024-07-04"), Guests: 3})
	require.NoError(t, err)
	_, err = ledger.UpdatePaymentStatus(ctx, third.ID, model.PaymentUnpaid, model.PaymentPaid, "cs_1")
	require.NoError(t, err)

	t.Run("user bookings newest first with room and hotel", func(t *testing.T) {
		views, err := svc.UserBookings(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, second.ID, views[0].ID)
		assert.Equal(t, first.ID, views[1].ID)
		require.NotNil(t, views[0].Hotel)
		assert.Equal(t, "Hillside", views[0].Hotel.Name)
		assert.Equal(t, "Suite", views[0].Room.RoomType)
	})

	t.Run("room removed from inventory leaves view bare", func(t *testing.T) {
		delete(inv.rooms, "room-b")
		defer func() { inv.rooms["room-b"] = other }()
		views, err := svc.UserBookings(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, views[0].Room)
		assert.NotNil(t, views[1].Room)
	})

	t.Run("single booking is scoped to its owner", func(t *testing.T) {
		got, err := svc.UserBooking(ctx, "user-1", first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)

		_, err = svc.UserBooking(ctx, "user-2", first.ID)
		assert.ErrorIs(t, err, ErrReservationNotFound)
		_, err = svc.UserBooking(ctx, "user-1", "nope")
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})

	t.Run("owner dashboard", func(t *testing.T) {
		d, err := svc.OwnerDashboard(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "hotel-1", d.Hotel.ID)
		assert.Equal(t, 2, d.TotalBookings)
		assert.Equal(t, int64(2000+3000), d.TotalRevenueCents)
		assert.Equal(t, int64(3000), d.PaidRevenueCents)
		assert.Equal(t, third.ID, d.Bookings[0].ID)
		for _, v := range d.Bookings {
			require.NotNil(t, v.Room)
			require.NotNil(t, v.Hotel)
			assert.Equal(t, "Double Bed", v.Room.RoomType)
			assert.Equal(t, "Seaside", v.Hotel.Name)
			assert.Equal(t, "1 Beach Rd", v.Hotel.Address)
		}

		_, err = svc.OwnerDashboard(ctx, "owner-9")
		assert.ErrorIs(t, err, ErrHotelNotFound)
	})

	t.Run("availability", func(t *testing.T) {
		ok, err := svc.IsAvailable(ctx, "room-a", date("2024-06-02"), date("2024-06-05"))
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = svc.IsAvailable(ctx, "room-a", date("2024-06-03"), date("2024-06-05"))
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = svc.IsAvailable(ctx, "room-a", date("2024-06-05"), date("2024-06-03"))
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}
