package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
)

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(KeyUserID).(string)
	return s
}

// Role returns the authenticated role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(KeyRole).(string)
	return s
}

// identity is the rate-limit and log identity of a request.
func identity(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "guest"
}
