package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/handler"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/model"
)

// RegisterBookings registers the booking routes under /api/bookings.  They
// require a valid JWT; creating and cancelling purge cached listings since
// both move a session's seat count.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, opt Options) {
	g := e.Group("/api/bookings",
		middleware.JWTAuth(opt.Tokens),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.GET("", h.List)
	g.GET("/active", h.Active)
	g.GET("/:id", h.Get)

	purge := middleware.InvalidateCache(opt.Cache, opt.Redis)
	g.POST("", h.Create, purge)
	g.DELETE("/:id", h.Cancel, purge)
}
