// Package middleware holds the echo middleware shared by the API routes:
// bearer authentication, role checks, rate limiting, response caching and
// request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/utils"
)

// TokenParser verifies a raw access token.  service.AuthService satisfies it.
type TokenParser interface {
	ParseAccess(raw string) (utils.Claims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its subject and role in the context under "user_id" and "role".
// Requests without a valid token are answered with 401.
func JWTAuth(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "missing bearer token")
			}
			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				return deny(c, http.StatusUnauthorized, "invalid token")
			}
			c.Set(KeyUserID, claims.UserID)
			c.Set(KeyRole, claims.Role)
			return next(c)
		}
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}
