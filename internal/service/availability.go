package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// AvailabilityService answers whether a room is free for a date range.
// The answer is advisory: the ledger re-checks under its room lock when a
// reservation is actually written.
type AvailabilityService struct {
	ledger Ledger
}

func NewAvailabilityService(ledger Ledger) *AvailabilityService {
	return &AvailabilityService{ledger: ledger}
}

// IsAvailable reports whether no non-cancelled reservation for roomID
// overlaps [checkIn, checkOut).  Dates are normalised to UTC days.
func (s *AvailabilityService) IsAvailable(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	checkIn, checkOut = model.DateOnly(checkIn), model.DateOnly(checkOut)
	if roomID == "" {
		return false, fmt.Errorf("%w: room is required", ErrInvalidRequest)
	}
	if !checkIn.Before(checkOut) {
		return false, fmt.Errorf("%w: check-in must be before check-out", ErrInvalidRequest)
	}
	overlap, err := s.ledger.HasOverlap(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return !overlap, nil
}
