package service

import "errors"

// ErrInvalidCredentials is returned when login or token refresh fails.
// Handlers translate it into 401.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrMissingCredentials is returned by Logout when neither a bearer
// identity nor a refresh token was supplied.
var ErrMissingCredentials = errors.New("provide Authorization header or refresh_token")
