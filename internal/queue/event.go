// Package queue carries booking events between the API and the notifier:
// the message payloads, publishers for RabbitMQ and Kafka, and the
// matching consumers.
package queue

import "encoding/json"

// BookingConfirmedEvent is published when a reservation is written.  It
// carries everything the notifier needs to log the booking and email the
// guest without querying the primary database.
type BookingConfirmedEvent struct {
	ReservationID   string `json:"reservation_id"`
	UserID          string `json:"user_id"`
	UserEmail       string `json:"user_email,omitempty"`
	UserName        string `json:"user_name,omitempty"`
	RoomID          string `json:"room_id"`
	RoomType        string `json:"room_type"`
	HotelID         string `json:"hotel_id"`
	HotelName       string `json:"hotel_name"`
	HotelAddress    string `json:"hotel_address"`
	CheckIn         string `json:"check_in"`  // YYYY-MM-DD
	CheckOut        string `json:"check_out"` // YYYY-MM-DD
	Nights          int    `json:"nights"`
	Guests          int    `json:"guests"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Currency        string `json:"currency"`
	ConfirmedAt     string `json:"confirmed_at"` // RFC3339
}

// Encode returns the JSON wire form of the event.
func (e BookingConfirmedEvent) Encode() ([]byte, error) { return json.Marshal(e) }

// DecodeBookingConfirmed parses a message body produced by Encode.
func DecodeBookingConfirmed(body []byte) (BookingConfirmedEvent, error) {
	var ev BookingConfirmedEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
