package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

// Upcoming listing limits.
const (
	DefaultUpcomingLimit = 10
	MaxUpcomingLimit     = 50
)

// SessionService manages sessions.  Requests are expected to be validated
// with dto.Validate before they reach it.
type SessionService struct {
	sessions SessionStore
	bookings BookingStore
	now      func() time.Time
}

func NewSessionService(s SessionStore, b BookingStore) *SessionService {
	return &SessionService{sessions: s, bookings: b, now: time.Now}
}

// SessionBookings is the admin view of a session's bookings.
type SessionBookings struct {
	Session     *model.Session
	Bookings    []model.Booking
	ActiveCount int64
}

func (s *SessionService) Create(ctx context.Context, req dto.SessionRequest) (*model.Session, error) {
	sess := req.ToModel(uuid.NewString())
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"session_id": sess.ID, "language": sess.Language}).Info("session created")
	return &sess, nil
}

// Update rewrites the session's core fields and whichever optional fields
// the request carries.  Changing TotalSeats shifts AvailableSeats by the
// same amount; lowering it below the number of seats already booked fails
// with InvalidState.
func (s *SessionService) Update(ctx context.Context, id string, req dto.SessionRequest) (*model.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.ApplyTo(sess)
	updated, err := s.sessions.Update(ctx, sess)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("session %s: %w", id, err)
		case errors.Is(err, repository.ErrInvalidState):
			return nil, fmt.Errorf("total seats below booked seats: %w", err)
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes a session.  Its bookings stay and are listed without it.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return wrapSessionErr(id, err)
	}
	log.WithField("session_id", id).Info("session deleted")
	return nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, wrapSessionErr(id, err)
	}
	return sess, nil
}

// ListAvailable returns bookable sessions from today on, soonest first.
func (s *SessionService) ListAvailable(ctx context.Context, q dto.SessionQuery) (Page[model.Session], error) {
	page, perPage := model.ClampPage(q.Page, q.ItemsPerPage)
	f := repository.SessionFilter{
		Language: q.Language,
		Level:    q.Level,
		Offset:   model.Offset(page, perPage),
		Limit:    perPage,
	}
	items, total, err := s.sessions.ListAvailable(ctx, f, today(s.now()))
	if err != nil {
		return Page[model.Session]{}, err
	}
	return Page[model.Session]{Items: items, Pagination: model.NewPagination(total, page, perPage)}, nil
}

// ListAll returns every session, latest first.
func (s *SessionService) ListAll(ctx context.Context, page, perPage int) (Page[model.Session], error) {
	page, perPage = model.ClampPage(page, perPage)
	items, total, err := s.sessions.ListAll(ctx, model.Offset(page, perPage), perPage)
	if err != nil {
		return Page[model.Session]{}, err
	}
	return Page[model.Session]{Items: items, Pagination: model.NewPagination(total, page, perPage)}, nil
}

// Upcoming returns active sessions from today on.  limit defaults to 10 and
// is capped at 50.
func (s *SessionService) Upcoming(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	if limit > MaxUpcomingLimit {
		limit = MaxUpcomingLimit
	}
	return s.sessions.Upcoming(ctx, today(s.now()), limit)
}

func (s *SessionService) CountAvailable(ctx context.Context) (int64, error) {
	return s.sessions.CountAvailable(ctx, today(s.now()))
}

// Bookings lists a session's bookings with the number still active.
func (s *SessionService) Bookings(ctx context.Context, id string) (*SessionBookings, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.bookings.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.bookings.CountActiveBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionBookings{Session: sess, Bookings: items, ActiveCount: n}, nil
}
