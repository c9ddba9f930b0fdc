package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/queue"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

// memStore is an in-memory backend honoring the same atomic contract as the
// MySQL and MongoDB stores: Reserve and Cancel are linearizable.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	bookings map[string]model.Booking
	order    []string
	users    map[string]model.User
	tokens   map[string]model.RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]model.Session{},
		bookings: map[string]model.Booking{},
		users:    map[string]model.User{},
		tokens:   map[string]model.RefreshToken{},
	}
}

// sessions

func (m *memStore) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.AvailableSeats = s.TotalSeats
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) put(s model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) Update(_ context.Context, s *model.Session) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.BookedSeats() > s.TotalSeats {
		return nil, repository.ErrInvalidState
	}
	next := *s
	next.AvailableSeats = cur.AvailableSeats + (s.TotalSeats - cur.TotalSeats)
	next.CreatedAt = cur.CreatedAt
	m.sessions[s.ID] = next
	return &next, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memStore) sortedSessions(keep func(model.Session) bool, desc bool) []model.Session {
	out := []model.Session{}
	for _, s := range m.sessions {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].StartsAt().After(out[j].StartsAt())
		}
		return out[i].StartsAt().Before(out[j].StartsAt())
	})
	return out
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *memStore) ListAvailable(_ context.Context, f repository.SessionFilter, day time.Time) ([]model.Session, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedSessions(func(s model.Session) bool {
		if !s.IsActive || s.Date.Before(day) || s.AvailableSeats <= 0 {
			return false
		}
		if f.Language != "" && s.Language != f.Language {
			return false
		}
		return f.Level == "" || (s.Level != nil && *s.Level == f.Level)
	}, false)
	return window(all, f.Offset, f.Limit), int64(len(all)), nil
}

func (m *memStore) ListAll(_ context.Context, offset, limit int) ([]model.Session, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedSessions(func(model.Session) bool { return true }, true)
	return window(all, offset, limit), int64(len(all)), nil
}

func (m *memStore) Upcoming(_ context.Context, day time.Time, limit int) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedSessions(func(s model.Session) bool { return s.IsActive && !s.Date.Before(day) }, false)
	return window(all, 0, limit), nil
}

func (m *memStore) CountAvailable(ctx context.Context, day time.Time) (int64, error) {
	_, n, err := m.ListAvailable(ctx, repository.SessionFilter{Limit: 1}, day)
	return n, err
}

// bookings

type memBookings struct{ *memStore }

func (m memBookings) Reserve(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[b.SessionID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.AvailableSeats <= 0 {
		return repository.ErrCapacityExceeded
	}
	for _, other := range m.bookings {
		if other.UserID == b.UserID && other.SessionID == b.SessionID && !other.IsCancelled() {
			return repository.ErrConflict
		}
	}
	s.AvailableSeats--
	m.sessions[s.ID] = s
	b.Status = model.BookingConfirmed
	b.CreatedAt = time.Now().Add(time.Duration(len(m.order)) * time.Millisecond)
	b.UpdatedAt = b.CreatedAt
	m.bookings[b.ID] = *b
	m.order = append(m.order, b.ID)
	return nil
}

func (m memBookings) Cancel(_ context.Context, bookingID, userID string, reason *string, at time.Time) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if b.IsCancelled() {
		return nil, repository.ErrInvalidState
	}
	b.Status = model.BookingCancelled
	b.CancellationReason = reason
	b.CancelledAt = &at
	b.UpdatedAt = at
	m.bookings[b.ID] = b
	if s, ok := m.sessions[b.SessionID]; ok && s.AvailableSeats < s.TotalSeats {
		s.AvailableSeats++
		m.sessions[s.ID] = s
	}
	return &b, nil
}

func (m memBookings) GetForUser(_ context.Context, bookingID, userID string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m memBookings) filter(keep func(model.Booking) bool) []model.Booking {
	out := []model.Booking{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if b := m.bookings[m.order[i]]; keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func (m memBookings) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filter(func(b model.Booking) bool { return b.UserID == userID })
	return window(all, offset, limit), int64(len(all)), nil
}

func (m memBookings) ListActiveByUser(_ context.Context, userID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(b model.Booking) bool { return b.UserID == userID && b.IsActive() }), nil
}

func (m memBookings) ListBySession(_ context.Context, sessionID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(b model.Booking) bool { return b.SessionID == sessionID }), nil
}

func (m memBookings) CountActiveBySession(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filter(func(b model.Booking) bool { return b.SessionID == sessionID && b.IsActive() }))), nil
}

func (m memBookings) HasActive(_ context.Context, userID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filter(func(b model.Booking) bool {
		return b.UserID == userID && b.SessionID == sessionID && b.IsActive()
	})) > 0, nil
}

func (m memBookings) CompletePast(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.bookings {
		s, ok := m.sessions[b.SessionID]
		if ok && b.Status == model.BookingConfirmed && s.IsPast(now) {
			b.Status = model.BookingCompleted
			m.bookings[id] = b
			n++
		}
	}
	return n, nil
}

// users and tokens

type memUsers struct{ *memStore }

func (m memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m memUsers) Update(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.users {
		if id != u.ID && other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	m.users[u.ID] = *u
	return nil
}

type memTokens struct{ *memStore }

func (m memTokens) StoreRefresh(_ context.Context, id, userID, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[hash] = model.RefreshToken{ID: id, UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return nil
}

func (m memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || t.RevokedAt != nil || time.Now().After(t.ExpiresAt) {
		return "", repository.ErrNotFound
	}
	return t.UserID, nil
}

func (m memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
		m.tokens[hash] = t
	}
	return nil
}

func (m memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for h, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			m.tokens[h] = t
		}
	}
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
