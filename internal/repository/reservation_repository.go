package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ReservationRepo is the reservation ledger: the authoritative,
// conflict-checked store of reservations.  Writers for the same room are
// serialised through a row lock on room_ledger_locks, so the overlap check
// and the insert are atomic across every service instance sharing the
// database.  All timestamps are stored in UTC and dates as DATE columns.
type ReservationRepo struct {
	db    *sql.DB
	retry RetryConfig
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, retry: DefaultRetryConfig}
}

// WithRetry overrides the deadlock retry policy.
func (r *ReservationRepo) WithRetry(cfg RetryConfig) *ReservationRepo {
	r.retry = cfg
	return r
}

const dateLayout = "2006-01-02"

const reservationColumns = `id, user_id, room_id, hotel_id, check_in, check_out, guests,
       total_price_cents, currency, status, payment_status, payment_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		res        model.Reservation
		status     string
		payStatus  string
		paymentRef sql.NullString
	)
	err := s.Scan(
		&res.ID, &res.UserID, &res.RoomID, &res.HotelID, &res.CheckIn, &res.CheckOut, &res.Guests,
		&res.TotalPriceCents, &res.Currency, &status, &payStatus, &paymentRef, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationStatus(status)
	res.PaymentStatus = model.PaymentStatus(payStatus)
	if paymentRef.Valid {
		pr := paymentRef.String
		res.PaymentRef = &pr
	}
	res.CheckIn = model.DateOnly(res.CheckIn)
	res.CheckOut = model.DateOnly(res.CheckOut)
	return res, nil
}

// InsertIfAvailable stores res only if no non-cancelled reservation for the
// same room overlaps [CheckIn, CheckOut).  It returns ErrConflict when an
// overlap exists.  The caller supplies the ID, price and timestamps; the
// stored row is returned as read back from the database.
func (r *ReservationRepo) InsertIfAvailable(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	if !res.CheckIn.Before(res.CheckOut) {
		return model.Reservation{}, fmt.Errorf("insert reservation: check-in must precede check-out")
	}
	// Make sure the lock row exists before the transaction starts; two
	// transactions inserting the same new key would otherwise deadlock.
	if _, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO room_ledger_locks (room_id) VALUES (?)`, res.RoomID); err != nil {
		return model.Reservation{}, fmt.Errorf("ensure room lock: %w", err)
	}

	var stored model.Reservation
	err := withRetry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		stored, err = r.insertIfAvailableTx(ctx, res)
		return err
	})
	return stored, err
}

func (r *ReservationRepo) insertIfAvailableTx(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return model.Reservation{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err := tx.QueryRowContext(ctx, `SELECT room_id FROM room_ledger_locks WHERE room_id = ? FOR UPDATE`, res.RoomID).Scan(&locked); err != nil {
		return model.Reservation{}, fmt.Errorf("lock room: %w", err)
	}

	overlap, err := hasOverlap(ctx, tx, res.RoomID, res.CheckIn, res.CheckOut)
	if err != nil {
		return model.Reservation{}, err
	}
	if overlap {
		return model.Reservation{}, ErrConflict
	}

	const ins = `INSERT INTO reservations (id, user_id, room_id, hotel_id, check_in, check_out, guests,
                 total_price_cents, currency, status, payment_status, payment_ref, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var paymentRef sql.NullString
	if res.PaymentRef != nil {
		paymentRef = sql.NullString{String: *res.PaymentRef, Valid: true}
	}
	createdAt := res.CreatedAt.UTC()
	updatedAt := res.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if _, err := tx.ExecContext(ctx, ins,
		res.ID, res.UserID, res.RoomID, res.HotelID,
		res.CheckIn.UTC().Format(dateLayout), res.CheckOut.UTC().Format(dateLayout), res.Guests,
		res.TotalPriceCents, res.Currency, string(res.Status), string(res.PaymentStatus), paymentRef,
		createdAt, updatedAt,
	); err != nil {
		return model.Reservation{}, err
	}

	stored, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID))
	if err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, err
	}
	committed = true
	return stored, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasOverlap(ctx context.Context, q queryer, roomID string, checkIn, checkOut time.Time) (bool, error) {
	// Half-open intervals [a,b) and [c,d) overlap iff a < d && c < b.
	const sel = `SELECT EXISTS (
                     SELECT 1 FROM reservations
                     WHERE room_id = ? AND status <> ? AND check_in < ? AND check_out > ?)`
	var exists bool
	err := q.QueryRowContext(ctx, sel,
		roomID, string(model.ReservationCancelled),
		checkOut.UTC().Format(dateLayout), checkIn.UTC().Format(dateLayout),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

// HasOverlap reports whether any non-cancelled reservation for roomID
// overlaps [checkIn, checkOut).  It is a plain read; InsertIfAvailable
// repeats the check under the room lock.
func (r *ReservationRepo) HasOverlap(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	return hasOverlap(ctx, r.db, roomID, checkIn, checkOut)
}

// FindByID returns the reservation with the given id or ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id string) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// ListByUser returns every reservation made by userID, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// ListByHotel returns every reservation for hotelID, newest first.
func (r *ReservationRepo) ListByHotel(ctx context.Context, hotelID string) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE hotel_id = ? ORDER BY created_at DESC, id DESC`, hotelID)
}

func (r *ReservationRepo) list(ctx context.Context, q string, arg string) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdatePaymentStatus moves a reservation's payment status from `from` to
// `to` with a conditional update.  A non-empty paymentRef replaces the
// stored reference, also when from equals to.
//
// When the stored status no longer equals `from`, the row is re-read: if
// it already equals `to` the call is a no-op and the current row is
// returned; otherwise ErrConflict is returned.  Missing reservations yield
// ErrNotFound and transitions the state machine forbids yield
// ErrInvalidTransition.
func (r *ReservationRepo) UpdatePaymentStatus(ctx context.Context, id string, from, to model.PaymentStatus, paymentRef string) (model.Reservation, error) {
	if from != to && !from.CanTransitionTo(to) {
		return model.Reservation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from != to || paymentRef != "" {
		const upd = `UPDATE reservations
                     SET payment_status = ?, payment_ref = COALESCE(NULLIF(?, ''), payment_ref)
                     WHERE id = ? AND payment_status = ?`
		result, err := r.db.ExecContext(ctx, upd, string(to), paymentRef, id, string(from))
		if err != nil {
			return model.Reservation{}, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return model.Reservation{}, err
		}
		if n == 1 {
			return r.FindByID(ctx, id)
		}
	}
	cur, err := r.FindByID(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if cur.PaymentStatus == to {
		return cur, nil
	}
	return model.Reservation{}, ErrConflict
}
