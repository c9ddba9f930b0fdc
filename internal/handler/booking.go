package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/service"
)

// BookingHandler serves the authenticated user's bookings.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

// List returns the caller's bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	q := pageQuery(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Bookings.List(ctx, middleware.UserID(c), q.Page, q.ItemsPerPage)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"data":       bookingViews(page.Items),
		"pagination": page.Pagination,
	})
}

// Active returns the caller's confirmed and pending bookings.
func (h *BookingHandler) Active(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Bookings.Active(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"data": bookingViews(items)})
}

func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Get(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"data": newBookingView(b)})
}

// Create reserves a seat: 201 on success, 404 for an unknown session, 400
// for a past or inactive one, 409 when full or already booked.
func (h *BookingHandler) Create(c echo.Context) error {
	var req dto.CreateBookingRequest
	if done, err := bindValid(c, &req); !done {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Create(ctx, middleware.UserID(c), req.SessionID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{
		"message": "booking created",
		"data":    newBookingView(b),
	})
}

// Cancel cancels one of the caller's bookings.  The body {"reason": "..."}
// is optional.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req dto.CancelBookingRequest
	if done, err := bindValid(c, &req); !done {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Cancel(ctx, middleware.UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"message": "booking cancelled",
		"data":    newBookingView(b),
	})
}
