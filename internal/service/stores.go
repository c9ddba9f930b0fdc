// Package service implements the booking workflow and the session, user
// and authentication use cases on top of a storage backend.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/queue"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

// SessionStore persists sessions.  Implemented by repository.SessionRepo
// and mongostore.SessionStore.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, s *model.Session) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	ListAvailable(ctx context.Context, f repository.SessionFilter, today time.Time) ([]model.Session, int64, error)
	ListAll(ctx context.Context, offset, limit int) ([]model.Session, int64, error)
	Upcoming(ctx context.Context, today time.Time, limit int) ([]model.Session, error)
	CountAvailable(ctx context.Context, today time.Time) (int64, error)
}

// BookingStore persists bookings.  Reserve and Cancel are the only
// operations that move a session's seat counter and each is atomic with
// respect to concurrent callers.
type BookingStore interface {
	Reserve(ctx context.Context, b *model.Booking) error
	Cancel(ctx context.Context, bookingID, userID string, reason *string, at time.Time) (*model.Booking, error)
	GetForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Booking, int64, error)
	ListActiveByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Booking, error)
	CountActiveBySession(ctx context.Context, sessionID string) (int64, error)
	HasActive(ctx context.Context, userID, sessionID string) (bool, error)
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, id, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// EventPublisher delivers booking events.  Failures never fail the
// operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.BookingEvent) error { return nil }

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	Pagination model.Pagination
}

func today(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
