package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/lang-test-booking/internal/model"
)

// BookingRepo persists bookings and owns the two statements that move a
// session's seat counter: Reserve and Cancel.  Each runs the counter update
// and the booking write in one transaction.
//
// The bookings table carries a generated active_marker column that is NULL
// for cancelled rows and 1 otherwise, and a unique key on
// (user_id, session_id, active_marker).  MySQL ignores NULLs in unique keys,
// so at most one non-cancelled booking per user and session can exist.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, session_id, user_id, status, cancellation_reason, cancelled_at, created_at, updated_at`

// Reserve takes one seat of b.SessionID and inserts b as confirmed.
//
// Errors:
//   - ErrNotFound         the session does not exist
//   - ErrCapacityExceeded the session has no seat left
//   - ErrConflict         the user already holds a non-cancelled booking
//
// On any error nothing is written.
func (r *BookingRepo) Reserve(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET available_seats = available_seats - 1, updated_at = ? WHERE id = ? AND available_seats > 0`,
		now, b.SessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, b.SessionID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrCapacityExceeded
	}

	b.Status = model.BookingConfirmed
	b.CreatedAt, b.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (id, session_id, user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.SessionID, b.UserID, b.Status, b.CreatedAt, b.UpdatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Cancel marks the user's booking as cancelled and gives its seat back to
// the session, never raising available_seats above total_seats.  A deleted
// session does not prevent the cancellation.
//
// Errors:
//   - ErrNotFound     no booking with that id belongs to userID
//   - ErrInvalidState the booking is already cancelled
func (r *BookingRepo) Cancel(ctx context.Context, bookingID, userID string, reason *string, at time.Time) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	at = at.UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancellation_reason = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND status <> ?`,
		model.BookingCancelled, reason, at, at, bookingID, userID, model.BookingCancelled)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM bookings WHERE id = ? AND user_id = ?`, bookingID, userID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrInvalidState
	}

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET available_seats = LEAST(available_seats + 1, total_seats), updated_at = ? WHERE id = ?`,
		at, b.SessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return b, nil
}

// GetForUser returns a booking owned by userID or ErrNotFound.
func (r *BookingRepo) GetForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND user_id = ?`, bookingID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListByUser returns one page of the user's bookings, newest first, and the
// total number of bookings the user has.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Booking, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListActiveByUser returns the user's confirmed and pending bookings.
func (r *BookingRepo) ListActiveByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? AND status IN (?, ?) ORDER BY created_at DESC`,
		userID, model.BookingConfirmed, model.BookingPending)
}

// ListBySession returns every booking of a session, newest first.
func (r *BookingRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
}

// CountActiveBySession counts confirmed and pending bookings of a session.
func (r *BookingRepo) CountActiveBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE session_id = ? AND status IN (?, ?)`,
		sessionID, model.BookingConfirmed, model.BookingPending).Scan(&n)
	return n, err
}

// HasActive reports whether the user holds a confirmed or pending booking
// for the session.
func (r *BookingRepo) HasActive(ctx context.Context, userID, sessionID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM bookings WHERE user_id = ? AND session_id = ? AND status IN (?, ?) LIMIT 1`,
		userID, sessionID, model.BookingConfirmed, model.BookingPending).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CompletePast moves confirmed bookings whose session started before now to
// completed and returns how many rows changed.  Seat counters are untouched.
func (r *BookingRepo) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings b JOIN sessions s ON s.id = b.session_id
		 SET b.status = ?, b.updated_at = ?
		 WHERE b.status = ? AND TIMESTAMP(s.date, s.time) < ?`,
		model.BookingCompleted, now, model.BookingConfirmed, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *BookingRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b           model.Booking
		reason      sql.NullString
		cancelledAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.SessionID, &b.UserID, &b.Status, &reason, &cancelledAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		s := reason.String
		b.CancellationReason = &s
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}
