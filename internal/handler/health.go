package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger func(ctx context.Context) error

// Health answers "ok" when every ping succeeds and 503 otherwise.  It is
// used by load balancers and container health checks.
func Health(pings ...Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, ping := range pings {
			if err := ping(ctx); err != nil {
				log.WithError(err).Warn("health check failed")
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
