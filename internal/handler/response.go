// Package handler implements the REST endpoints.  Every response uses the
// envelope {"success": bool, ...} with "data", "message", "errors" and
// "pagination" members as appropriate.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
	"github.com/iliyamo/lang-test-booking/internal/service"
)

// requestTimeout bounds the storage work of a single handler call.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func ok(c echo.Context, status int, body echo.Map) error {
	body["success"] = true
	return c.JSON(status, body)
}

func failMsg(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

func invalid(c echo.Context, errs []dto.FieldError) error {
	m := make(map[string]string, len(errs))
	for _, fe := range errs {
		m[fe.Field] = fe.Message
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "errors": m})
}

// bindValid binds the request body into v and validates it.  When it
// returns false the error response has already been written.
func bindValid(c echo.Context, v interface{}) (bool, error) {
	if err := c.Bind(v); err != nil {
		return false, failMsg(c, http.StatusBadRequest, "invalid body")
	}
	if errs := dto.Validate(v); len(errs) > 0 {
		return false, invalid(c, errs)
	}
	return true, nil
}

// queryInt reads an integer query parameter.  Missing or malformed values
// read as 0 and are normalized by the service.
func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

func pageQuery(c echo.Context) dto.PageQuery {
	return dto.PageQuery{Page: queryInt(c, "page"), ItemsPerPage: queryInt(c, "itemsPerPage")}
}

// statusOf maps a service error onto its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrCapacityExceeded), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status.  Unexpected errors are logged and
// their text is not exposed.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request().Method,
			"route":  c.Path(),
		}).Error("request failed")
		return failMsg(c, status, http.StatusText(status))
	}
	return failMsg(c, status, err.Error())
}

type sessionView struct {
	ID              string  `json:"id"`
	Language        string  `json:"language"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Location        string  `json:"location"`
	TotalSeats      int     `json:"totalSeats"`
	AvailableSeats  int     `json:"availableSeats"`
	Description     *string `json:"description"`
	Level           *string `json:"level"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
	IsActive        bool    `json:"isActive"`
}

func newSessionView(s *model.Session) sessionView {
	return sessionView{
		ID:              s.ID,
		Language:        s.Language,
		Date:            s.Date.UTC().Format(dto.DateLayout),
		Time:            s.Time,
		Location:        s.Location,
		TotalSeats:      s.TotalSeats,
		AvailableSeats:  s.AvailableSeats,
		Description:     s.Description,
		Level:           s.Level,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		IsActive:        s.IsActive,
	}
}

func sessionViews(items []model.Session) []sessionView {
	out := make([]sessionView, 0, len(items))
	for i := range items {
		out = append(out, newSessionView(&items[i]))
	}
	return out
}

// bookingSession is the short session summary embedded in bookings.
type bookingSession struct {
	ID       string  `json:"id"`
	Language string  `json:"language"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Location string  `json:"location"`
	Level    *string `json:"level"`
}

const timestampLayout = "2006-01-02 15:04:05"

type bookingView struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"sessionId"`
	Status             string          `json:"status"`
	CancellationReason *string         `json:"cancellationReason,omitempty"`
	CancelledAt        string          `json:"cancelledAt,omitempty"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
	Session            *bookingSession `json:"session,omitempty"`
}

func newBookingView(b *model.Booking) bookingView {
	v := bookingView{
		ID:                 b.ID,
		SessionID:          b.SessionID,
		Status:             b.Status,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:          b.UpdatedAt.UTC().Format(timestampLayout),
	}
	if b.CancelledAt != nil {
		v.CancelledAt = b.CancelledAt.UTC().Format(timestampLayout)
	}
	if s := b.Session; s != nil {
		v.Session = &bookingSession{
			ID:       s.ID,
			Language: s.Language,
			Date:     s.Date.UTC().Format(dto.DateLayout),
			Time:     s.Time,
			Location: s.Location,
			Level:    s.Level,
		}
	}
	return v
}

func bookingViews(items []model.Booking) []bookingView {
	out := make([]bookingView, 0, len(items))
	for i := range items {
		out = append(out, newBookingView(&items[i]))
	}
	return out
}

type userView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func newUserView(u *model.User) userView {
	v := userView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	if !u.CreatedAt.IsZero() {
		v.CreatedAt = u.CreatedAt.UTC().Format(timestampLayout)
	}
	if !u.UpdatedAt.IsZero() {
		v.UpdatedAt = u.UpdatedAt.UTC().Format(timestampLayout)
	}
	return v
}
