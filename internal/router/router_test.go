package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lang-test-booking/internal/config"
	"github.com/iliyamo/lang-test-booking/internal/handler"
	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
	"github.com/iliyamo/lang-test-booking/internal/service"
	"github.com/iliyamo/lang-test-booking/internal/utils"
)

const secret = "test-secret"

// fakeSessions implements the session store methods these routes reach;
// the embedded interface panics on anything else.
type fakeSessions struct {
	service.SessionStore
	mu sync.Mutex
	m  map[string]model.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) ListAvailable(_ context.Context, _ repository.SessionFilter, _ time.Time) ([]model.Session, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Session{}
	for _, s := range f.m {
		if s.AvailableSeats > 0 {
			out = append(out, s)
		}
	}
	return out, int64(len(out)), nil
}

type fakeBookings struct {
	service.BookingStore
	sessions *fakeSessions
	held     map[string]bool
}

func (f *fakeBookings) HasActive(_ context.Context, userID, sessionID string) (bool, error) {
	return f.held[userID+"/"+sessionID], nil
}

func (f *fakeBookings) Reserve(_ context.Context, b *model.Booking) error {
	f.sessions.mu.Lock()
	defer f.sessions.mu.Unlock()
	s := f.sessions.m[b.SessionID]
	if s.AvailableSeats <= 0 {
		return repository.ErrCapacityExceeded
	}
	s.AvailableSeats--
	f.sessions.m[s.ID] = s
	f.held[b.UserID+"/"+b.SessionID] = true
	b.Status = model.BookingConfirmed
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	return nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	day := time.Now().UTC().AddDate(0, 1, 0)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	sessions := &fakeSessions{m: map[string]model.Session{
		"open": {ID: "open", Language: "Anglais", Date: day, Time: "09:00", Location: "Paris",
			TotalSeats: 2, AvailableSeats: 2, IsActive: true},
		"full": {ID: "full", Language: "Espagnol", Date: day, Time: "10:00", Location: "Lyon",
			TotalSeats: 1, AvailableSeats: 0, IsActive: true},
	}}
	bookings := &fakeBookings{sessions: sessions, held: map[string]bool{}}

	auth := service.NewAuthService(nil, nil, service.AuthConfig{JWTSecret: secret, AccessTTLMin: 5})
	e := echo.New()
	Register(e, Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Users:    handler.NewUserHandler(service.NewUserService(nil, 4)),
		Sessions: handler.NewSessionHandler(service.NewSessionService(sessions, bookings)),
		Bookings: handler.NewBookingHandler(service.NewBookingService(bookings, sessions, service.NopPublisher{})),
		Health:   handler.Health(),
	}, Options{Tokens: auth, Cache: config.CacheConfig{}})
	return e
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func do(e *echo.Echo, method, path, bearer, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateBookingFlow(t *testing.T) {
	e := newTestServer(t)
	user := token(t, "u1", model.RoleUser)

	rec, _ := do(e, http.MethodPost, "/api/bookings", "", `{"sessionId":"open"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(e, http.MethodPost, "/api/bookings", user, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["errors"], "sessionId")

	rec, body = do(e, http.MethodPost, "/api/bookings", user, `{"sessionId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, body = do(e, http.MethodPost, "/api/bookings", user, `{"sessionId":"full"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = do(e, http.MethodPost, "/api/bookings", user, `{"sessionId":"open"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, model.BookingConfirmed, data["status"])
	sess := data["session"].(map[string]interface{})
	assert.Equal(t, "09:00", sess["time"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, sess["date"])

	rec, _ = do(e, http.MethodPost, "/api/bookings", user, `{"sessionId":"open"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPublicSessionListing(t *testing.T) {
	e := newTestServer(t)
	rec, body := do(e, http.MethodGet, "/api/sessions?page=abc&itemsPerPage=500", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)
	pg := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pg["currentPage"])
	assert.EqualValues(t, model.MaxPerPage, pg["itemsPerPage"])
	assert.EqualValues(t, 1, pg["total"])

	rec, _ = do(e, http.MethodGet, "/api/sessions/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	e := newTestServer(t)

	rec, _ := do(e, http.MethodPost, "/api/sessions", token(t, "u1", model.RoleUser), `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(e, http.MethodGet, "/api/admin/sessions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(e, http.MethodPost, "/api/sessions", token(t, "a1", model.RoleAdmin),
		`{"language":"Klingon","date":"2030-13-01","time":"9h","location":"x","totalSeats":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := body["errors"].(map[string]interface{})
	for _, field := range []string{"language", "date", "time", "location", "totalSeats"} {
		assert.Contains(t, errs, field)
	}
}

func TestLogoutWithoutCredentials(t *testing.T) {
	e := newTestServer(t)
	rec, body := do(e, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}
