// Package router registers the HTTP routes of the API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lang-test-booking/internal/config"
	"github.com/iliyamo/lang-test-booking/internal/handler"
	"github.com/iliyamo/lang-test-booking/internal/metrics"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/model"
)

// Handlers bundles the endpoint implementations.
type Handlers struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Sessions *handler.SessionHandler
	Bookings *handler.BookingHandler
	Health   echo.HandlerFunc
}

// Options carries what the route middleware needs.  Redis may be nil.
type Options struct {
	Tokens middleware.TokenParser
	Cache  config.CacheConfig
	Redis  *redis.Client
}

// Register mounts every route.
func Register(e *echo.Echo, h Handlers, opt Options) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, h.Users, opt.Tokens)
	RegisterSessions(e, h.Sessions, opt)
	RegisterBookings(e, h.Bookings, opt)
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers account and token routes.  Token exchange lives
// under /api/auth without a bearer; the profile requires USER or ADMIN.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, tokens middleware.TokenParser) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	me := e.Group("/api/users",
		middleware.JWTAuth(tokens),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	me.GET("/me", u.Me)
	me.PUT("/me", u.UpdateMe)
	me.PATCH("/me", u.UpdateMe)
}
