package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/service"
)

// UserHandler serves the caller's profile.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(u *service.UserService) *UserHandler {
	return &UserHandler{Users: u}
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Get(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": newUserView(u)})
}

// UpdateMe edits name, email or password of the authenticated user.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req dto.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return failMsg(c, http.StatusBadRequest, "invalid body")
	}
	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &e
	}
	if errs := dto.Validate(req); len(errs) > 0 {
		return invalid(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, middleware.UserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"message": "profile updated",
		"user":    newUserView(u),
	})
}
