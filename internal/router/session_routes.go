package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/handler"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/model"
)

// RegisterSessions registers the public catalogue, served through the
// response cache, and the ADMIN session management routes.  Admin writes
// purge the cache.
func RegisterSessions(e *echo.Echo, h *handler.SessionHandler, opt Options) {
	cache := middleware.NewRedisCache(opt.Cache, opt.Redis)
	e.GET("/api/sessions", h.List, cache)
	e.GET("/api/sessions/upcoming", h.Upcoming, cache)
	e.GET("/api/sessions/stats", h.Stats, cache)
	e.GET("/api/sessions/:id", h.Get, cache)

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(opt.Tokens),
		middleware.RequireRole(model.RoleAdmin),
	}
	write := append(admin[:len(admin):len(admin)], middleware.InvalidateCache(opt.Cache, opt.Redis))
	e.POST("/api/sessions", h.Create, write...)
	e.PUT("/api/sessions/:id", h.Update, write...)
	e.PATCH("/api/sessions/:id", h.Update, write...)
	e.DELETE("/api/sessions/:id", h.Delete, write...)

	g := e.Group("/api/admin", admin...)
	g.GET("/sessions", h.ListAll)
	g.GET("/sessions/:id/bookings", h.Bookings)
}
