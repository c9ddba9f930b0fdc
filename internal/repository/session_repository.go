package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/lang-test-booking/internal/model"
)

// SessionRepo provides persistence for language-test sessions.  The seat
// counters are only ever changed through conditional statements so that
// 0 <= available_seats <= total_seats holds under concurrent writers.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// SessionFilter narrows the public listing of bookable sessions.  Empty
// strings disable the corresponding filter.
type SessionFilter struct {
	Language string
	Level    string
	Offset   int
	Limit    int
}

const sessionColumns = `id, language, date, time, location, total_seats, available_seats,
	description, level, duration_minutes, price, is_active, created_at, updated_at`

// Create inserts a new session.  AvailableSeats is forced to TotalSeats.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	now := time.Now().UTC()
	s.AvailableSeats = s.TotalSeats
	s.CreatedAt, s.UpdatedAt = now, now
	const q = `INSERT INTO sessions (id, language, date, time, location, total_seats, available_seats,
		description, level, duration_minutes, price, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.Language, s.Date, s.Time, s.Location, s.TotalSeats, s.AvailableSeats,
		s.Description, s.Level, s.DurationMinutes, s.Price, s.IsActive, s.CreatedAt, s.UpdatedAt)
	return err
}

// GetByID returns the session with the given id or ErrNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update rewrites the editable fields of s.  A change of TotalSeats shifts
// available_seats by the same delta in the same statement; the update is
// refused with ErrInvalidState when the new total is lower than the number
// of seats already booked.  The stored row is returned.
//
// The DSN sets clientFoundRows, so zero affected rows means the WHERE clause
// did not match.  When the seat guard failed only because of a concurrent
// booking or cancellation the statement is retried once, then ErrConflict.
func (r *SessionRepo) Update(ctx context.Context, s *model.Session) (*model.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		matched, err := r.update(ctx, s)
		if err != nil {
			return nil, err
		}
		if matched {
			return r.GetByID(ctx, s.ID)
		}
		var total, available int
		err = r.db.QueryRowContext(ctx,
			`SELECT total_seats, available_seats FROM sessions WHERE id = ?`, s.ID).Scan(&total, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if total-available > s.TotalSeats {
			return nil, ErrInvalidState
		}
	}
	return nil, ErrConflict
}

func (r *SessionRepo) update(ctx context.Context, s *model.Session) (bool, error) {
	// MySQL evaluates single-table SET assignments left to right, so the
	// available_seats expression still sees the old total_seats.
	const q = `UPDATE sessions SET language = ?, date = ?, time = ?, location = ?, description = ?,
		level = ?, duration_minutes = ?, price = ?, is_active = ?,
		available_seats = available_seats + (? - total_seats), total_seats = ?, updated_at = ?
		WHERE id = ? AND total_seats - available_seats <= ?`
	res, err := r.db.ExecContext(ctx, q,
		s.Language, s.Date, s.Time, s.Location, s.Description,
		s.Level, s.DurationMinutes, s.Price, s.IsActive,
		s.TotalSeats, s.TotalSeats, time.Now().UTC(),
		s.ID, s.TotalSeats)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a session.  Bookings that reference it are left in place.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAvailable returns bookable sessions (active, dated today or later,
// with at least one free seat) ordered by date and time, together with the
// total count matching the filter.
func (r *SessionRepo) ListAvailable(ctx context.Context, f SessionFilter, today time.Time) ([]model.Session, int64, error) {
	where := ` WHERE is_active = 1 AND date >= ? AND available_seats > 0`
	args := []interface{}{today}
	if f.Language != "" {
		where += ` AND language = ?`
		args = append(args, f.Language)
	}
	if f.Level != "" {
		where += ` AND level = ?`
		args = append(args, f.Level)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + sessionColumns + ` FROM sessions` + where + ` ORDER BY date ASC, time ASC LIMIT ? OFFSET ?`
	items, err := r.query(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every session, most recent first.
func (r *SessionRepo) ListAll(ctx context.Context, offset, limit int) ([]model.Session, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY date DESC, time DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Upcoming returns at most limit active sessions dated today or later.
func (r *SessionRepo) Upcoming(ctx context.Context, today time.Time, limit int) ([]model.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE is_active = 1 AND date >= ? ORDER BY date ASC, time ASC LIMIT ?`,
		today, limit)
}

// CountAvailable counts the sessions ListAvailable would return without filters.
func (r *SessionRepo) CountAvailable(ctx context.Context, today time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE is_active = 1 AND date >= ? AND available_seats > 0`, today).Scan(&n)
	return n, err
}

func (r *SessionRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s           model.Session
		description sql.NullString
		level       sql.NullString
	)
	err := row.Scan(&s.ID, &s.Language, &s.Date, &s.Time, &s.Location, &s.TotalSeats, &s.AvailableSeats,
		&description, &level, &s.DurationMinutes, &s.Price, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		d := description.String
		s.Description = &d
	}
	if level.Valid {
		l := level.String
		s.Level = &l
	}
	return &s, nil
}
