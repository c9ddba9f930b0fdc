package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lang-test-booking/internal/model"
)

var sessionCols = []string{"id", "language", "date", "time", "location", "total_seats", "available_seats",
	"description", "level", "duration_minutes", "price", "is_active", "created_at", "updated_at"}

func sessionRow(rows *sqlmock.Rows, id string, total, available int) *sqlmock.Rows {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "Anglais", day, "09:00", "Salle A", total, available,
		nil, "B2", 120, 25.5, true, day, day)
}

func TestSessionCreateSetsAvailableSeats(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).WillReturnResult(sqlmock.NewResult(0, 1))

	s := &model.Session{ID: "s1", Language: "Anglais", Time: "09:00", Location: "Salle A", TotalSeats: 12, AvailableSeats: 3}
	require.NoError(t, NewSessionRepo(db).Create(context.Background(), s))
	assert.Equal(t, 12, s.AvailableSeats)
}

func TestSessionGetByID(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE id = ?`)).WithArgs("s1").
		WillReturnRows(sessionRow(sqlmock.NewRows(sessionCols), "s1", 10, 4))

	s, err := NewSessionRepo(db).GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, s.BookedSeats())
	assert.Nil(t, s.Description)
	require.NotNil(t, s.Level)
	assert.Equal(t, "B2", *s.Level)
}

func TestSessionGetByIDMissing(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE id = ?`)).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := NewSessionRepo(db).GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionUpdateRejectsShrinkBelowBooked(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`available_seats = available_seats + (? - total_seats)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_seats, available_seats FROM sessions WHERE id = ?`)).
		WithArgs("s1").WillReturnRows(sqlmock.NewRows([]string{"total_seats", "available_seats"}).AddRow(10, 2))

	_, err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: "s1", TotalSeats: 5})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSessionUpdateMissing(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET language = ?`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_seats, available_seats FROM sessions`)).
		WithArgs("s9").WillReturnRows(sqlmock.NewRows([]string{"total_seats", "available_seats"}))

	_, err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: "s9", TotalSeats: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionUpdateReturnsStoredRow(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET language = ?`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE id = ?`)).WithArgs("s1").
		WillReturnRows(sessionRow(sqlmock.NewRows(sessionCols), "s1", 15, 9))

	s, err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: "s1", TotalSeats: 15})
	require.NoError(t, err)
	assert.Equal(t, 9, s.AvailableSeats)
}

func TestSessionUpdateRetriesAfterSeatRace(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	upd := regexp.QuoteMeta(`UPDATE sessions SET language = ?`)
	seats := regexp.QuoteMeta(`SELECT total_seats, available_seats FROM sessions WHERE id = ?`)
	mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(seats).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats", "available_seats"}).AddRow(10, 5))
	mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE id = ?`)).WithArgs("s1").
		WillReturnRows(sessionRow(sqlmock.NewRows(sessionCols), "s1", 6, 1))

	s, err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: "s1", TotalSeats: 6, Time: "18:00"})
	require.NoError(t, err)
	assert.Equal(t, 6, s.TotalSeats)
}

func TestSessionUpdateGivesUpWithConflict(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	upd := regexp.QuoteMeta(`UPDATE sessions SET language = ?`)
	seats := regexp.QuoteMeta(`SELECT total_seats, available_seats FROM sessions WHERE id = ?`)
	for i := 0; i < 2; i++ {
		mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(seats).WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"total_seats", "available_seats"}).AddRow(10, 5))
	}

	_, err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: "s1", TotalSeats: 6})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSessionDeleteMissing(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE id = ?`)).WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewSessionRepo(db).Delete(context.Background(), "s1"), ErrNotFound)
}

func TestSessionListAvailableWithFilters(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	today := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sessions WHERE is_active = 1 AND date >= ? AND available_seats > 0 AND language = ? AND level = ?`)).
		WithArgs(today, "Anglais", "B2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY date ASC, time ASC LIMIT ? OFFSET ?`)).
		WithArgs(today, "Anglais", "B2", 10, 10).
		WillReturnRows(sessionRow(sqlmock.NewRows(sessionCols), "s11", 10, 1))

	items, total, err := NewSessionRepo(db).ListAvailable(context.Background(),
		SessionFilter{Language: "Anglais", Level: "B2", Offset: 10, Limit: 10}, today)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, items, 1)
	assert.Equal(t, "s11", items[0].ID)
}

func TestSessionCountAvailable(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sessions WHERE is_active = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := NewSessionRepo(db).CountAvailable(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
