package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/metrics"
	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/queue"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

// BookingService runs the booking state machine:
//
//	NONE -> confirmed    Create
//	confirmed -> cancelled  Cancel
//	confirmed -> completed  CompletePast, once the session has started
//
// Preconditions are checked against a fresh read for precise errors; the
// store's atomic Reserve/Cancel re-enforce capacity and uniqueness so that
// concurrent callers cannot oversell a session or double-book a user.
type BookingService struct {
	bookings BookingStore
	sessions SessionStore
	events   EventPublisher
	now      func() time.Time
}

func NewBookingService(b BookingStore, s SessionStore, events EventPublisher) *BookingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BookingService{bookings: b, sessions: s, events: events, now: time.Now}
}

// Create books one seat of sessionID for userID.  The first failing check
// wins, in this order: the session exists (NotFound), has not started
// (InvalidState), is active (InvalidState), has a free seat
// (CapacityExceeded), and the user holds no non-cancelled booking for it
// (Conflict).
func (s *BookingService) Create(ctx context.Context, userID, sessionID string) (b *model.Booking, err error) {
	defer func() { metrics.RecordBooking("create", err) }()

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, wrapSessionErr(sessionID, err)
	}
	if sess.IsPast(s.now()) {
		return nil, fmt.Errorf("session already occurred: %w", repository.ErrInvalidState)
	}
	if !sess.IsActive {
		return nil, fmt.Errorf("session is not active: %w", repository.ErrInvalidState)
	}
	if !sess.HasAvailableSeats() {
		return nil, fmt.Errorf("no seats left in session %s: %w", sessionID, repository.ErrCapacityExceeded)
	}
	booked, err := s.bookings.HasActive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, fmt.Errorf("session already booked: %w", repository.ErrConflict)
	}

	b = &model.Booking{ID: uuid.NewString(), SessionID: sessionID, UserID: userID}
	if err := s.bookings.Reserve(ctx, b); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExceeded):
			return nil, fmt.Errorf("no seats left in session %s: %w", sessionID, err)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("session already booked: %w", err)
		}
		return nil, wrapSessionErr(sessionID, err)
	}

	// The seat is taken at this point; the re-read only refreshes the
	// embedded session, and the fallback count is for display.
	if fresh, err := s.sessions.GetByID(ctx, sessionID); err == nil {
		sess = fresh
	} else {
		sess.AvailableSeats--
	}
	b.Session = sess

	log.WithFields(log.Fields{"booking_id": b.ID, "session_id": sessionID, "user_id": userID}).Info("booking confirmed")
	s.publish(ctx, queue.QueueBookingConfirmed, b, nil)
	return b, nil
}

// Cancel cancels the user's booking and releases its seat.  A booking that
// does not exist or belongs to someone else is NotFound; a booking already
// cancelled is InvalidState.  A deleted session does not block the
// cancellation.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID string, reason *string) (b *model.Booking, err error) {
	defer func() { metrics.RecordBooking("cancel", err) }()

	b, err = s.bookings.Cancel(ctx, bookingID, userID, reason, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("booking %s: %w", bookingID, err)
		case errors.Is(err, repository.ErrInvalidState):
			return nil, fmt.Errorf("booking already cancelled: %w", err)
		}
		return nil, err
	}
	if err := s.enrich(ctx, []*model.Booking{b}); err != nil {
		log.WithError(err).WithField("booking_id", b.ID).Warn("load session of cancelled booking")
	}

	log.WithFields(log.Fields{"booking_id": b.ID, "session_id": b.SessionID, "user_id": userID}).Info("booking cancelled")
	s.publish(ctx, queue.QueueBookingCancelled, b, reason)
	return b, nil
}

// Get returns one of the user's bookings with its session when resolvable.
func (s *BookingService) Get(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	b, err := s.bookings.GetForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("booking %s: %w", bookingID, err)
		}
		return nil, err
	}
	if err := s.enrich(ctx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns the user's bookings newest first.  page is raised to 1 and
// perPage is clamped to [1, 50].
func (s *BookingService) List(ctx context.Context, userID string, page, perPage int) (Page[model.Booking], error) {
	page, perPage = model.ClampPage(page, perPage)
	items, total, err := s.bookings.ListByUser(ctx, userID, model.Offset(page, perPage), perPage)
	if err != nil {
		return Page[model.Booking]{}, err
	}
	if err := s.enrich(ctx, pointers(items)); err != nil {
		return Page[model.Booking]{}, err
	}
	return Page[model.Booking]{Items: items, Pagination: model.NewPagination(total, page, perPage)}, nil
}

// Active returns the user's confirmed and pending bookings.
func (s *BookingService) Active(ctx context.Context, userID string) ([]model.Booking, error) {
	items, err := s.bookings.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, pointers(items)); err != nil {
		return nil, err
	}
	return items, nil
}

// CompletePast moves confirmed bookings of started sessions to completed.
func (s *BookingService) CompletePast(ctx context.Context) (int64, error) {
	return s.bookings.CompletePast(ctx, s.now())
}

// enrich resolves each booking's session.  Deleted sessions are skipped and
// the booking is returned without one.
func (s *BookingService) enrich(ctx context.Context, bookings []*model.Booking) error {
	cache := map[string]*model.Session{}
	for _, b := range bookings {
		sess, seen := cache[b.SessionID]
		if !seen {
			var err error
			sess, err = s.sessions.GetByID(ctx, b.SessionID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			cache[b.SessionID] = sess
		}
		b.Session = sess
	}
	return nil
}

func (s *BookingService) publish(ctx context.Context, typ string, b *model.Booking, reason *string) {
	ev := queue.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     b.UserID,
		SessionID:  b.SessionID,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	}
	if b.Session != nil {
		ev.Language = b.Session.Language
		ev.SessionDate = b.Session.Date.Format("2006-01-02")
		ev.SessionTime = b.Session.Time
		ev.Location = b.Session.Location
	}
	if reason != nil {
		ev.Reason = *reason
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.WithError(err).WithField("booking_id", b.ID).Warn("booking event not delivered")
	}
}

func wrapSessionErr(sessionID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	return err
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
