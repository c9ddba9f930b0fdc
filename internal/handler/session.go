package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/service"
)

// SessionHandler serves the public session catalogue and the admin session
// endpoints.
type SessionHandler struct {
	Sessions *service.SessionService
}

func NewSessionHandler(s *service.SessionService) *SessionHandler {
	return &SessionHandler{Sessions: s}
}

// List returns bookable sessions, optionally filtered by language and level.
func (h *SessionHandler) List(c echo.Context) error {
	q := dto.SessionQuery{
		Page:         queryInt(c, "page"),
		ItemsPerPage: queryInt(c, "itemsPerPage"),
		Language:     c.QueryParam("language"),
		Level:        c.QueryParam("level"),
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Sessions.ListAvailable(ctx, q)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"data":       sessionViews(page.Items),
		"pagination": page.Pagination,
	})
}

// Upcoming returns the next active sessions; ?limit defaults to 10.
func (h *SessionHandler) Upcoming(c echo.Context) error {
	limit := queryInt(c, "limit")

	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Sessions.Upcoming(ctx, limit)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"data": sessionViews(items)})
}

// Stats reports how many sessions can currently be booked.
func (h *SessionHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Sessions.CountAvailable(ctx)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"data": echo.Map{"availableSessions": n}})
}

func (h *SessionHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sessions.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"data": newSessionView(s)})
}

// Create adds a session (admin).
func (h *SessionHandler) Create(c echo.Context) error {
	var req dto.SessionRequest
	if done, err := bindValid(c, &req); !done {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sessions.Create(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{
		"message": "session created",
		"data":    newSessionView(s),
	})
}

// Update replaces a session (admin).  Used for both PUT and PATCH.
func (h *SessionHandler) Update(c echo.Context) error {
	var req dto.SessionRequest
	if done, err := bindValid(c, &req); !done {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sessions.Update(ctx, c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"message": "session updated",
		"data":    newSessionView(s),
	})
}

// Delete removes a session (admin).
func (h *SessionHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Sessions.Delete(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "session deleted"})
}

// ListAll returns every session, newest first (admin).
func (h *SessionHandler) ListAll(c echo.Context) error {
	q := pageQuery(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Sessions.ListAll(ctx, q.Page, q.ItemsPerPage)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"data":       sessionViews(page.Items),
		"pagination": page.Pagination,
	})
}

// Bookings lists the bookings of a session with its active count (admin).
func (h *SessionHandler) Bookings(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	sb, err := h.Sessions.Bookings(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"data": echo.Map{
			"session":     newSessionView(sb.Session),
			"bookings":    bookingViews(sb.Bookings),
			"activeCount": sb.ActiveCount,
		},
	})
}
