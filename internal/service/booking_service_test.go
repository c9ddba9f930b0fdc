package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/queue"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type bookingFixture struct {
	store  *memStore
	events *recordingPublisher
	svc    *BookingService
}

func newBookingFixture() *bookingFixture {
	store := newMemStore()
	events := &recordingPublisher{}
	svc := NewBookingService(memBookings{store}, store, events)
	svc.now = func() time.Time { return fixedNow }
	return &bookingFixture{store: store, events: events, svc: svc}
}

func (f *bookingFixture) session(id string, total, available int, at time.Time, active bool) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	f.store.put(model.Session{
		ID:             id,
		Language:       "Anglais",
		Date:           day,
		Time:           at.Format("15:04"),
		Location:       "Salle A",
		TotalSeats:     total,
		AvailableSeats: available,
		IsActive:       active,
	})
}

func (f *bookingFixture) seats(t *testing.T, id string) int {
	t.Helper()
	s, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return s.AvailableSeats
}

func TestLastSeatIsFreedByCancellation(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	f.session("s1", 1, 1, fixedNow.Add(48*time.Hour), true)

	a, err := f.svc.Create(ctx, "userA", "s1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, a.Status)
	require.NotNil(t, a.Session)
	assert.Equal(t, 0, a.Session.AvailableSeats)
	assert.Equal(t, 0, f.seats(t, "s1"))

	_, err = f.svc.Create(ctx, "userB", "s1")
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	cancelled, err := f.svc.Cancel(ctx, "userA", a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, 1, f.seats(t, "s1"))

	_, err = f.svc.Create(ctx, "userB", "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, f.seats(t, "s1"))

	assert.Equal(t, []string{queue.QueueBookingConfirmed, queue.QueueBookingCancelled, queue.QueueBookingConfirmed}, f.events.types())
}

func TestCreatePreconditionOrder(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		available int
		at        time.Time
		active    bool
		want      error
	}{
		{"past session with seats", 5, 5, fixedNow.Add(-24 * time.Hour), true, repository.ErrInvalidState},
		{"past and full", 5, 0, fixedNow.Add(-time.Hour), true, repository.ErrInvalidState},
		{"inactive and full", 5, 0, fixedNow.Add(time.Hour), false, repository.ErrInvalidState},
		{"full", 5, 0, fixedNow.Add(time.Hour), true, repository.ErrCapacityExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture()
			f.session("s1", tc.total, tc.available, tc.at, tc.active)
			_, err := f.svc.Create(context.Background(), "u1", "s1")
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.available, f.seats(t, "s1"))
		})
	}
}

func TestCreatePastSessionMessage(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 5, 5, fixedNow.Add(-24*time.Hour), true)
	_, err := f.svc.Create(context.Background(), "u1", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session already occurred")
}

func TestCreateUnknownSession(t *testing.T) {
	f := newBookingFixture()
	_, err := f.svc.Create(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateTwiceIsConflict(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 5, 5, fixedNow.Add(time.Hour), true)

	_, err := f.svc.Create(context.Background(), "userA", "s1")
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), "userA", "s1")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 4, f.seats(t, "s1"))
}

func TestRebookAfterCancel(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 5, 5, fixedNow.Add(time.Hour), true)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, "u1", "s1")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, "u1", b.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, f.seats(t, "s1"))
}

func TestConcurrentCreateNeverOversells(t *testing.T) {
	f := newBookingFixture()
	const seats, users = 5, 40
	f.session("s1", seats, seats, fixedNow.Add(time.Hour), true)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), fmt.Sprintf("user%d", i), "s1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, seats, ok)
	assert.Equal(t, users-seats, full)
	assert.Equal(t, 0, f.seats(t, "s1"))
}

func TestConcurrentCreateSameUser(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 10, 10, fixedNow.Add(time.Hour), true)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), "same", "s1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, repository.ErrConflict) {
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, dups)
	assert.Equal(t, 9, f.seats(t, "s1"))
}

func TestConcurrentCancelReleasesOnce(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 3, 3, fixedNow.Add(time.Hour), true)
	b, err := f.svc.Create(context.Background(), "u1", "s1")
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Cancel(context.Background(), "u1", b.ID, nil)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrInvalidState)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, f.seats(t, "s1"))
}

func TestCancelErrors(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 3, 3, fixedNow.Add(time.Hour), true)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, "owner", "s1")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "intruder", b.ID, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Cancel(ctx, "owner", "missing", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	reason := "conflict at work"
	got, err := f.svc.Cancel(ctx, "owner", b.ID, &reason)
	require.NoError(t, err)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, reason, *got.CancellationReason)
	require.NotNil(t, got.CancelledAt)

	_, err = f.svc.Cancel(ctx, "owner", b.ID, nil)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
	assert.Contains(t, err.Error(), "already cancelled")
}

func TestCancelNeverExceedsTotalSeats(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 2, 2, fixedNow.Add(time.Hour), true)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, "u1", "s1")
	require.NoError(t, err)

	// An admin edit restored the counter out of band.
	s, _ := f.store.GetByID(ctx, "s1")
	s.AvailableSeats = s.TotalSeats
	f.store.put(*s)

	_, err = f.svc.Cancel(ctx, "u1", b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.seats(t, "s1"))
}

func TestCancelAfterSessionDeleted(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 2, 2, fixedNow.Add(time.Hour), true)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, "u1", "s1")
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, "s1"))

	got, err := f.svc.Cancel(ctx, "u1", b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	assert.Nil(t, got.Session)
}

func TestListPaginatesAndToleratesDeletedSessions(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.session(fmt.Sprintf("s%d", i), 5, 5, fixedNow.Add(time.Duration(i+1)*time.Hour), true)
		_, err := f.svc.Create(ctx, "u1", fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, f.store.Delete(ctx, "s2"))

	page, err := f.svc.List(ctx, "u1", 0, 500)
	require.NoError(t, err)
	assert.Equal(t, model.Pagination{Total: 3, Pages: 1, CurrentPage: 1, ItemsPerPage: 50}, page.Pagination)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "s2", page.Items[0].SessionID)
	assert.Nil(t, page.Items[0].Session)
	require.NotNil(t, page.Items[1].Session)
	assert.Equal(t, "s1", page.Items[1].Session.ID)

	page, err = f.svc.List(ctx, "u1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Pages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s0", page.Items[0].SessionID)
}

func TestGetAndActive(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	f.session("s1", 5, 5, fixedNow.Add(time.Hour), true)
	f.session("s2", 5, 5, fixedNow.Add(2*time.Hour), true)
	b1, err := f.svc.Create(ctx, "u1", "s1")
	require.NoError(t, err)
	b2, err := f.svc.Create(ctx, "u1", "s2")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, "u1", b2.ID, nil)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "u1", b1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Session)
	_, err = f.svc.Get(ctx, "u2", b1.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	active, err := f.svc.Active(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b1.ID, active[0].ID)
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	f := newBookingFixture()
	f.events.err = errors.New("broker down")
	f.session("s1", 5, 5, fixedNow.Add(time.Hour), true)

	_, err := f.svc.Create(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, f.events.types(), 1)
}

func TestCompletePast(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	f.session("s1", 5, 5, fixedNow.Add(time.Hour), true)
	b, err := f.svc.Create(ctx, "u1", "s1")
	require.NoError(t, err)

	n, err := f.svc.CompletePast(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	n, err = f.svc.CompletePast(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.svc.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, got.Status)
	assert.Equal(t, 4, f.seats(t, "s1"))
}

// flakySessions fails every session read after the first.
type flakySessions struct {
	*memStore
	reads int
}

func (f *flakySessions) GetByID(ctx context.Context, id string) (*model.Session, error) {
	f.reads++
	if f.reads > 1 {
		return nil, errors.New("read replica gone")
	}
	return f.memStore.GetByID(ctx, id)
}

func TestCreateSurvivesFailedSessionRefresh(t *testing.T) {
	f := newBookingFixture()
	f.session("s1", 3, 3, fixedNow.Add(48*time.Hour), true)
	svc := NewBookingService(memBookings{f.store}, &flakySessions{memStore: f.store}, nil)
	svc.now = f.svc.now

	b, err := svc.Create(context.Background(), "userA", "s1")
	require.NoError(t, err)
	require.NotNil(t, b.Session)
	assert.Equal(t, 2, b.Session.AvailableSeats)
	assert.Equal(t, 2, f.seats(t, "s1"))
}
