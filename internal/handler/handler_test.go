package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

type fakeBookings struct {
	room      model.RoomListing
	roomErr   error
	available bool
	availErr  error
	created   model.Reservation
	createErr error
	lastReq   service.BookingRequest
	views     []service.BookingView
	one       model.Reservation
	oneErr    error
	dashboard service.Dashboard
	dashErr   error
}

func (f *fakeBookings) Room(context.Context, string) (model.RoomListing, error) {
	return f.room, f.roomErr
}

func (f *fakeBookings) IsAvailable(context.Context, string, time.Time, time.Time) (bool, error) {
	return f.available, f.availErr
}

func (f *fakeBookings) CreateBooking(_ context.Context, req service.BookingRequest) (model.Reservation, error) {
	f.lastReq = req
	return f.created, f.createErr
}

func (f *fakeBookings) UserBookings(context.Context, string) ([]service.BookingView, error) {
	return f.views, nil
}

func (f *fakeBookings) UserBooking(context.Context, string, string) (model.Reservation, error) {
	return f.one, f.oneErr
}

func (f *fakeBookings) OwnerDashboard(context.Context, string) (service.Dashboard, error) {
	return f.dashboard, f.dashErr
}

type fakePayments struct {
	session    service.PaymentSession
	beginErr   error
	origin     string
	confirm    service.ConfirmResult
	confirmErr error
	confirmed  []string
}

func (f *fakePayments) BeginPayment(_ context.Context, _, _, origin string) (service.PaymentSession, error) {
	f.origin = origin
	return f.session, f.beginErr
}

func (f *fakePayments) ConfirmPayment(_ context.Context, id string, outcome service.PaymentOutcome, ref string) (service.ConfirmResult, error) {
	f.confirmed = append(f.confirmed, fmt.Sprintf("%s:%s:%s", id, outcome, ref))
	return f.confirm, f.confirmErr
}

// as sets the authenticated principal without a token.
func as(p model.Principal) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			middleware.SetPrincipal(c, p)
			return next(c)
		}
	}
}

var guest = model.Principal{UserID: "u1", Role: model.RoleCustomer, Email: "u1@example.com", Name: "Uma"}

func do(e *echo.Echo, method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func bookingServer(f *fakeBookings, p *model.Principal) *echo.Echo {
	e := echo.New()
	h := NewBookingHandler(f, nil)
	e.GET("/v1/rooms/:id", h.GetRoom)
	e.GET("/v1/rooms/:id/availability", h.Availability)
	auth := []echo.MiddlewareFunc{}
	if p != nil {
		auth = append(auth, as(*p))
	}
	e.POST("/v1/bookings", h.Create, auth...)
	e.GET("/v1/bookings", h.List, auth...)
	e.GET("/v1/bookings/:id", h.Get, auth...)
	e.GET("/v1/owner/bookings", h.OwnerBookings, auth...)
	return e
}

func TestWriteError_Codes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: guests must be positive", service.ErrInvalidRequest), http.StatusBadRequest, CodeInvalidRequest},
		{service.ErrRoomNotFound, http.StatusNotFound, CodeRoomNotFound},
		{service.ErrRoomUnavailable, http.StatusConflict, CodeRoomUnavailable},
		{service.ErrReservationNotFound, http.StatusNotFound, CodeReservationNotFound},
		{service.ErrAlreadyPaid, http.StatusConflict, CodeAlreadyPaid},
		{fmt.Errorf("%w: card_declined secret detail", service.ErrPaymentProvider), http.StatusBadGateway, CodePaymentProvider},
		{service.ErrConflict, http.StatusConflict, CodeConflict},
		{service.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{service.ErrHotelNotFound, http.StatusNotFound, CodeHotelNotFound},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		f := &fakeBookings{createErr: tc.err}
		rec, body := do(bookingServer(f, &guest), http.MethodPost, "/v1/bookings",
			`{"room_id":"room-a","check_in":"2024-06-01","check_out":"2024-06-03","guests":2}`)
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, tc.code, body["error"])
		msg, _ := body["message"].(string)
		assert.NotContains(t, msg, "secret detail")
		assert.NotContains(t, msg, "dial tcp")
	}
}

func TestCreateBooking(t *testing.T) {
	f := &fakeBookings{created: model.Reservation{ID: "res-1", RoomID: "room-a", TotalPriceCents: 2000, PaymentStatus: model.PaymentUnpaid}}
	rec, body := do(bookingServer(f, &guest), http.MethodPost, "/v1/bookings",
		`{"room_id":"room-a","check_in":"2024-06-01","check_out":"2024-06-03T00:00:00Z","guests":2,"user_id":"intruder"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "/v1/bookings/res-1", rec.Header().Get(echo.HeaderLocation))
	res := body["reservation"].(map[string]any)
	assert.Equal(t, "res-1", res["id"])
	assert.Equal(t, "UNPAID", res["payment_status"])

	assert.Equal(t, "u1", f.lastReq.UserID)
	assert.Equal(t, "u1@example.com", f.lastReq.UserEmail)
	assert.Equal(t, "Uma", f.lastReq.UserName)
	assert.Equal(t, "room-a", f.lastReq.RoomID)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), f.lastReq.CheckIn)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), f.lastReq.CheckOut)
	assert.Equal(t, 2, f.lastReq.Guests)
}

func TestCreateBooking_OffsetTimestampsKeepTheirDay(t *testing.T) {
	f := &fakeBookings{created: model.Reservation{ID: "res-1"}}
	rec, _ := do(bookingServer(f, &guest), http.MethodPost, "/v1/bookings",
		`{"room_id":"room-a","check_in":"2024-06-01T00:00:00+05:30","check_out":"2024-06-03T23:30:00-08:00","guests":1}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), f.lastReq.CheckIn)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), f.lastReq.CheckOut)
}

func TestParseDate(t *testing.T) {
	for in, want := range map[string]string{
		"2024-06-01":                "2024-06-01",
		" 2024-06-01 ":              "2024-06-01",
		"2024-06-01T00:00:00Z":      "2024-06-01",
		"2024-06-01T00:00:00+05:30": "2024-06-01",
		"2024-06-01T23:59:59-11:00": "2024-06-01",
		"2024-05-31T22:00:00-03:00": "2024-05-31",
	} {
		got, ok := parseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got.Format(time.DateOnly), in)
		assert.Equal(t, time.UTC, got.Location(), in)
		assert.True(t, got.Equal(got.Truncate(24*time.Hour)), in)
	}
	for _, in := range []string{"", "06/01/2024", "2024-06-01 10:00"} {
		_, ok := parseDate(in)
		assert.False(t, ok, in)
	}
}

func TestCreateBooking_BadInput(t *testing.T) {
	for name, body := range map[string]string{
		"not json":    `{`,
		"bad date":    `{"room_id":"a","check_in":"06/01/2024","check_out":"2024-06-03","guests":1}`,
		"no checkout": `{"room_id":"a","check_in":"2024-06-01","guests":1}`,
	} {
		rec, out := do(bookingServer(&fakeBookings{}, &guest), http.MethodPost, "/v1/bookings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, CodeInvalidRequest, out["error"], name)
	}
}

func TestBookingRoutes_RequirePrincipal(t *testing.T) {
	e := bookingServer(&fakeBookings{}, nil)
	for _, r := range [][2]string{
		{http.MethodPost, "/v1/bookings"},
		{http.MethodGet, "/v1/bookings"},
		{http.MethodGet, "/v1/bookings/res-1"},
		{http.MethodGet, "/v1/owner/bookings"},
	} {
		rec, out := do(e, r[0], r[1], "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r[1])
		assert.Equal(t, CodeUnauthorized, out["error"])
	}
}

func TestRoomAndAvailability(t *testing.T) {
	f := &fakeBookings{
		room:      model.RoomListing{Room: model.Room{ID: "room-a", HotelID: "h1", NightlyRateCents: 1000, IsAvailable: true}, Hotel: model.Hotel{ID: "h1", Name: "Seaside"}},
		available: true,
	}
	e := bookingServer(f, nil)

	rec, body := do(e, http.MethodGet, "/v1/rooms/room-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Seaside", body["hotel"].(map[string]any)["name"])

	rec, body = do(e, http.MethodGet, "/v1/rooms/room-a/availability?check_in=2024-06-01&check_out=2024-06-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, "2024-06-01", body["check_in"])

	f.available = false
	_, body = do(e, http.MethodGet, "/v1/rooms/room-a/availability?check_in=2024-06-01&check_out=2024-06-03", "")
	assert.Equal(t, false, body["available"])

	// withdrawn listings are never available
	f.available, f.room.Room.IsAvailable = true, false
	_, body = do(e, http.MethodGet, "/v1/rooms/room-a/availability?check_in=2024-06-01&check_out=2024-06-03", "")
	assert.Equal(t, false, body["available"])

	rec, _ = do(e, http.MethodGet, "/v1/rooms/room-a/availability?check_in=2024-06-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.roomErr = service.ErrRoomNotFound
	rec, body = do(e, http.MethodGet, "/v1/rooms/zzz/availability?check_in=2024-06-01&check_out=2024-06-03", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeRoomNotFound, body["error"])
}

func TestListAndGetBookings(t *testing.T) {
	f := &fakeBookings{
		views: []service.BookingView{
			{Reservation: model.Reservation{ID: "new"}, Hotel: &model.Hotel{ID: "h1", Name: "Seaside"}},
			{Reservation: model.Reservation{ID: "old"}},
		},
		oneErr: service.ErrReservationNotFound,
	}
	e := bookingServer(f, &guest)

	rec, body := do(e, http.MethodGet, "/v1/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	list := body["bookings"].([]any)
	assert.Equal(t, "new", list[0].(map[string]any)["id"])
	assert.Equal(t, "Seaside", list[0].(map[string]any)["hotel"].(map[string]any)["name"])
	assert.NotContains(t, list[1].(map[string]any), "hotel")

	rec, body = do(e, http.MethodGet, "/v1/bookings/someone-elses", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeReservationNotFound, body["error"])
}

func TestOwnerBookings(t *testing.T) {
	owner := model.Principal{UserID: "owner-1", Role: model.RoleOwner}
	f := &fakeBookings{dashboard: service.Dashboard{
		Hotel:             model.Hotel{ID: "h1", Name: "Seaside"},
		TotalBookings:     2,
		TotalRevenueCents: 5000,
		PaidRevenueCents:  3000,
		Bookings: []service.BookingView{
			{Reservation: model.Reservation{ID: "a"}, Room: &model.Room{ID: "room-a", RoomType: "Double Bed"}, Hotel: &model.Hotel{ID: "h1", Name: "Seaside"}},
			{Reservation: model.Reservation{ID: "b"}},
		},
	}}
	rec, body := do(bookingServer(f, &owner), http.MethodGet, "/v1/owner/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total_bookings"])
	assert.EqualValues(t, 5000, body["total_revenue_cents"])
	assert.EqualValues(t, 3000, body["paid_revenue_cents"])
	rows := body["bookings"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].(map[string]any)["id"])
	assert.Equal(t, "Double Bed", rows[0].(map[string]any)["room"].(map[string]any)["room_type"])
	assert.Equal(t, "Seaside", rows[0].(map[string]any)["hotel"].(map[string]any)["name"])

	f.dashErr = service.ErrHotelNotFound
	rec, body = do(bookingServer(f, &owner), http.MethodGet, "/v1/owner/bookings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeHotelNotFound, body["error"])
}

func paymentServer(f *fakePayments, parser WebhookParser) *echo.Echo {
	e := echo.New()
	h := NewPaymentHandler(f, parser, nil)
	e.POST("/v1/bookings/:id/payment", h.Begin, as(guest))
	e.POST("/v1/payments/webhook", h.Webhook)
	return e
}

func TestBeginPayment(t *testing.T) {
	f := &fakePayments{session: service.PaymentSession{ReservationID: "res-1", SessionID: "cs_1", URL: "https://checkout.example/cs_1"}}
	e := paymentServer(f, nil)

	rec, body := do(e, http.MethodPost, "/v1/bookings/res-1/payment", "", echo.HeaderOrigin, "https://app.example.com/some/page")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://checkout.example/cs_1", body["url"])
	assert.Equal(t, "https://app.example.com", f.origin)

	do(e, http.MethodPost, "/v1/bookings/res-1/payment", "", echo.HeaderOrigin, "javascript:alert(1)")
	assert.Equal(t, "", f.origin)

	f.beginErr = service.ErrAlreadyPaid
	rec, body = do(e, http.MethodPost, "/v1/bookings/res-1/payment", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeAlreadyPaid, body["error"])
}

type stubParser struct {
	ev  payment.WebhookEvent
	err error
}

func (s stubParser) ParseWebhook([]byte, string) (payment.WebhookEvent, error) { return s.ev, s.err }

func TestWebhook_Statuses(t *testing.T) {
	relevant := payment.WebhookEvent{ID: "evt_1", ReservationID: "res-1", SessionID: "cs_1", Outcome: service.OutcomeSucceeded, Relevant: true}
	cases := []struct {
		name       string
		parser     WebhookParser
		confirm    service.ConfirmResult
		confirmErr error
		status     int
		result     string
	}{
		{"applied", stubParser{ev: relevant}, service.ConfirmResult{Status: service.ConfirmApplied}, nil, http.StatusOK, "applied"},
		{"duplicate", stubParser{ev: relevant}, service.ConfirmResult{Status: service.ConfirmDuplicate}, nil, http.StatusOK, "duplicate"},
		{"unknown reservation", stubParser{ev: relevant}, service.ConfirmResult{Status: service.ConfirmIgnored}, nil, http.StatusOK, "ignored"},
		{"irrelevant event", stubParser{ev: payment.WebhookEvent{ID: "evt_2", Type: "customer.created"}}, service.ConfirmResult{}, nil, http.StatusOK, "ignored"},
		{"bad signature", stubParser{err: payment.ErrInvalidSignature}, service.ConfirmResult{}, nil, http.StatusBadRequest, ""},
		{"malformed", stubParser{err: payment.ErrMalformedEvent}, service.ConfirmResult{}, nil, http.StatusBadRequest, ""},
		{"storage down", stubParser{ev: relevant}, service.ConfirmResult{}, errors.New("db down"), http.StatusInternalServerError, ""},
		{"not configured", nil, service.ConfirmResult{}, nil, http.StatusBadGateway, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakePayments{confirm: tc.confirm, confirmErr: tc.confirmErr}
			rec, body := do(paymentServer(f, tc.parser), http.MethodPost, "/v1/payments/webhook", `{}`)
			assert.Equal(t, tc.status, rec.Code)
			if tc.result != "" {
				assert.Equal(t, tc.result, body["status"])
				assert.Equal(t, true, body["received"])
			}
		})
	}
}

func TestWebhook_StripeSignature(t *testing.T) {
	const secret = "whsec_handler_test"
	parser := payment.NewStripeProvider(config.PaymentConfig{WebhookSecret: secret}, "")
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_paid",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": "2024-09-30.acacia",
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_live_1",
			"object":         "checkout.session",
			"payment_status": "paid",
			"metadata":       map[string]string{"reservation_id": "res-9"},
		}},
	})
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret, Timestamp: time.Now()})

	f := &fakePayments{confirm: service.ConfirmResult{Status: service.ConfirmApplied}}
	e := paymentServer(f, parser)

	rec, _ := do(e, http.MethodPost, "/v1/payments/webhook", string(sp.Payload), "Stripe-Signature", sp.Header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"res-9:succeeded:cs_live_1"}, f.confirmed)

	rec, _ = do(e, http.MethodPost, "/v1/payments/webhook", string(sp.Payload), "Stripe-Signature", "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.confirmed, 1)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health(nil))
	rec, body := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	e = echo.New()
	e.GET("/healthz", Health(pingFunc(func(context.Context) error { return errors.New("down") })))
	rec, _ = do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }
