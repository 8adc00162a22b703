package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/queue"
)

const confirmationSubject = "Hotel Booking Confirmation"

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`
<h2>Your Booking Details</h2>
<p>Dear {{.Name}},</p>
<p>Thank you for your booking! Here are your details:</p>
<ul>
  <li><strong>Booking ID:</strong> {{.ReservationID}}</li>
  <li><strong>Hotel Name:</strong> {{.HotelName}}</li>
  <li><strong>Location:</strong> {{.HotelAddress}}</li>
  <li><strong>Check-in:</strong> {{.CheckIn}}</li>
  <li><strong>Check-out:</strong> {{.CheckOut}}</li>
  <li><strong>Total Amount:</strong> {{.Amount}}</li>
</ul>
<p>We look forward to welcoming you!</p>
`))

// ConfirmationEmail renders the guest confirmation for ev.
func ConfirmationEmail(ev queue.BookingConfirmedEvent) (Message, error) {
	name := ev.UserName
	if name == "" {
		name = "Guest"
	}
	data := struct {
		Name, ReservationID, HotelName, HotelAddress, CheckIn, CheckOut, Amount string
	}{
		Name:          name,
		ReservationID: ev.ReservationID,
		HotelName:     ev.HotelName,
		HotelAddress:  ev.HotelAddress,
		CheckIn:       displayDate(ev.CheckIn),
		CheckOut:      displayDate(ev.CheckOut),
		Amount:        FormatAmount(ev.TotalPriceCents, ev.Currency),
	}
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: ev.UserEmail, Subject: confirmationSubject, HTML: buf.String()}, nil
}

func displayDate(s string) string {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return s
	}
	return t.Format("Mon Jan 02 2006")
}

var currencySymbols = map[string]string{"inr": "₹", "usd": "$", "eur": "€", "gbp": "£"}

// FormatAmount renders minor units with the currency's symbol, or its
// upper-cased code when the symbol is unknown.
func FormatAmount(cents int64, currency string) string {
	sym, ok := currencySymbols[strings.ToLower(currency)]
	if !ok {
		sym = strings.ToUpper(currency) + " "
	}
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, sym, cents/100, cents%100)
}

// BookingHandler writes one line per booking to the booking log and emails
// the guest.  A missing mailer or guest address skips the email.
type BookingHandler struct {
	mailer Mailer
	log    *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

func NewBookingHandler(mailer Mailer, out io.Writer, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{mailer: mailer, out: out, log: log}
}

// Handle is a queue.Handler.  Log write failures are returned so the
// message is rejected; email failures are only logged.
func (h *BookingHandler) Handle(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	if ev.ReservationID == "" {
		return fmt.Errorf("event without reservation id")
	}
	if err := h.writeLine(ev); err != nil {
		return fmt.Errorf("write booking log: %w", err)
	}
	if h.mailer == nil || ev.UserEmail == "" {
		return nil
	}
	msg, err := ConfirmationEmail(ev)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		h.log.Warn("booking email failed", zap.String("reservation_id", ev.ReservationID), zap.Error(err))
		return nil
	}
	h.log.Info("booking confirmation sent", zap.String("reservation_id", ev.ReservationID))
	return nil
}

func (h *BookingHandler) writeLine(ev queue.BookingConfirmedEvent) error {
	line := fmt.Sprintf("[%s] Reservation confirmed | reservation_id=%s | user_id=%s | hotel=%q | room=%s | stay=%s..%s (%d nights) | guests=%d | total=%d %s\n",
		ev.ConfirmedAt, ev.ReservationID, ev.UserID, ev.HotelName, ev.RoomID,
		ev.CheckIn, ev.CheckOut, ev.Nights, ev.Guests, ev.TotalPriceCents, strings.ToUpper(ev.Currency))
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line)
	return err
}
