package model

// Room is a bookable unit inside a hotel.  The nightly rate is stored in
// minor currency units so that price arithmetic stays exact.
//
// Fields:
//
//	ID               – primary key identifier.
//	HotelID          – owning hotel.
//	RoomType         – free-form label (e.g. "Double Bed").
//	NightlyRateCents – positive price per night in minor units.
//	IsAvailable      – listing flag maintained by the owner; it does not
//	                   replace the reservation overlap check.
type Room struct {
	ID               string `json:"id"`                 // rooms.id
	HotelID          string `json:"hotel_id"`           // rooms.hotel_id
	RoomType         string `json:"room_type"`          // rooms.room_type
	NightlyRateCents int64  `json:"nightly_rate_cents"` // rooms.price_per_night_cents
	IsAvailable      bool   `json:"is_available"`       // rooms.is_available
}

// RoomListing is a room together with the hotel that owned it at the
// moment it was read.
type RoomListing struct {
	Room  Room  `json:"room"`
	Hotel Hotel `json:"hotel"`
}
