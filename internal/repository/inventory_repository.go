package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// InventoryRepo reads rooms and hotels.  The booking core never writes
// inventory; listings are managed elsewhere and only resolved here.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns a new InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Resolve loads a room together with its owning hotel.  It returns
// ErrNotFound when the room (or its hotel) does not exist.
func (r *InventoryRepo) Resolve(ctx context.Context, roomID string) (model.RoomListing, error) {
	const q = `SELECT r.id, r.hotel_id, r.room_type, r.nightly_rate_cents, r.is_available,
                      h.id, h.owner_id, h.name, h.address, h.city, h.created_at
               FROM rooms r
               JOIN hotels h ON h.id = r.hotel_id
               WHERE r.id = ?`
	var l model.RoomListing
	err := r.db.QueryRowContext(ctx, q, roomID).Scan(
		&l.Room.ID, &l.Room.HotelID, &l.Room.RoomType, &l.Room.NightlyRateCents, &l.Room.IsAvailable,
		&l.Hotel.ID, &l.Hotel.OwnerID, &l.Hotel.Name, &l.Hotel.Address, &l.Hotel.City, &l.Hotel.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoomListing{}, ErrNotFound
	}
	if err != nil {
		return model.RoomListing{}, err
	}
	return l, nil
}

// HotelByOwner returns the hotel registered by ownerID.  Owners manage a
// single hotel; if several rows exist the oldest wins.
func (r *InventoryRepo) HotelByOwner(ctx context.Context, ownerID string) (model.Hotel, error) {
	const q = `SELECT id, owner_id, name, address, city, created_at
               FROM hotels WHERE owner_id = ?
               ORDER BY created_at ASC, id ASC LIMIT 1`
	var h model.Hotel
	err := r.db.QueryRowContext(ctx, q, ownerID).Scan(&h.ID, &h.OwnerID, &h.Name, &h.Address, &h.City, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Hotel{}, ErrNotFound
	}
	if err != nil {
		return model.Hotel{}, err
	}
	return h, nil
}

// Hotel returns the hotel with the given id or ErrNotFound.
func (r *InventoryRepo) Hotel(ctx context.Context, hotelID string) (model.Hotel, error) {
	const q = `SELECT id, owner_id, name, address, city, created_at FROM hotels WHERE id = ?`
	var h model.Hotel
	err := r.db.QueryRowContext(ctx, q, hotelID).Scan(&h.ID, &h.OwnerID, &h.Name, &h.Address, &h.City, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Hotel{}, ErrNotFound
	}
	if err != nil {
		return model.Hotel{}, err
	}
	return h, nil
}
