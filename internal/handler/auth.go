package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/service"
)

// AuthHandler serves registration, login and token endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

func tokens(p service.TokenPair) echo.Map {
	return echo.Map{
		"access":  tokenPart{Token: p.Access.Token, Expires: p.Access.Exp},
		"refresh": tokenPart{Token: p.Refresh.Raw, Expires: p.Refresh.Exp},
	}
}

// Register creates a USER account and returns it with a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return failMsg(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := dto.Validate(req); len(errs) > 0 {
		return invalid(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, err := h.Auth.Register(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{
		"message": "registration successful",
		"user":    newUserView(u),
		"tokens":  tokens(pair),
	})
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return failMsg(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := dto.Validate(req); len(errs) > 0 {
		return invalid(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, err := h.Auth.Login(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": newUserView(u), "tokens": tokens(pair)})
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req dto.RefreshRequest
	if done, err := bindValid(c, &req); !done {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": newUserView(u), "tokens": tokens(pair)})
}

// RefreshAccess returns a fresh access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req dto.RefreshRequest
	if done, err := bindValid(c, &req); !done {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	access, err := h.Auth.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when the body carries none.  The route is public so that a
// client holding only a refresh token can still log out.
func (h *AuthHandler) Logout(c echo.Context) error {
	var bearer string
	if raw, found := middleware.BearerToken(c); found {
		if claims, err := h.Auth.ParseAccess(raw); err == nil {
			bearer = claims.UserID
		}
	}
	var req dto.RefreshRequest
	_ = c.Bind(&req)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, bearer, req.RefreshToken); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
