package model

import "time"

// Hotel represents a lodging property owned by a user.  Hotels are
// managed by an external inventory service; this service only reads them
// to build receipts and to scope the owner dashboard.
//
// Fields:
//
//	ID        – primary key identifier.
//	OwnerID   – identity-provider user ID of the hotel owner.
//	Name      – display name shown on receipts and checkout pages.
//	Address   – street address shown on confirmations.
//	City      – city used for search.
//	CreatedAt – timestamp when the hotel was created.
type Hotel struct {
	ID        string    `json:"id"`         // hotels.id
	OwnerID   string    `json:"owner_id"`   // hotels.owner_id
	Name      string    `json:"name"`       // hotels.name
	Address   string    `json:"address"`    // hotels.address
	City      string    `json:"city"`       // hotels.city
	CreatedAt time.Time `json:"created_at"` // hotels.created_at
}
