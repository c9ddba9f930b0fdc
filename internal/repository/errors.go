// Package repository holds the MySQL storage layer and the error values
// shared by every storage backend.  Higher layers such as services and
// handlers compare against these sentinels with errors.Is to distinguish
// failure scenarios; the MongoDB backend in internal/mongostore returns the
// same values.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested record does not exist, or
// exists but is owned by someone else.  Handlers translate it into 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidState is returned when an operation is not allowed in the
// record's current state, e.g. booking a past or inactive session or
// cancelling a booking twice.  Handlers translate it into 400.
var ErrInvalidState = errors.New("invalid state")

// ErrCapacityExceeded is returned when a session has no seat left.
// Handlers translate it into 409.
var ErrCapacityExceeded = errors.New("no seats available")

// ErrConflict is returned when a uniqueness rule would be violated, such
// as a second non-cancelled booking for the same user and session, or when
// a session update keeps losing to concurrent seat changes.  Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when a user is created or renamed to an email
// that is already registered.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate reports whether err is a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
