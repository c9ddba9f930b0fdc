package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(errs []FieldError) map[string]string {
	m := map[string]string{}
	for _, e := range errs {
		m[e.Field] = e.Message
	}
	return m
}

func TestRegisterRequestValidation(t *testing.T) {
	ok := RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "Secret123", ConfirmPassword: "Secret123"}
	assert.Nil(t, Validate(ok))

	bad := RegisterRequest{Name: "A", Email: "nope", Password: "secret12", ConfirmPassword: "other"}
	got := fields(Validate(bad))
	assert.Contains(t, got, "name")
	assert.Contains(t, got, "email")
	assert.Equal(t, "must contain a lowercase letter, an uppercase letter and a digit", got["password"])
	assert.Equal(t, "does not match", got["confirmPassword"])
}

func TestUpdateUserRequestSkipsNilFields(t *testing.T) {
	assert.Nil(t, Validate(UpdateUserRequest{}))

	short := "x"
	got := fields(Validate(UpdateUserRequest{Name: &short}))
	assert.Equal(t, "must be at least 2 characters", got["name"])
}

func TestSessionRequestValidation(t *testing.T) {
	level := "B2"
	req := SessionRequest{
		Language:   "Anglais",
		Date:       "2026-09-01",
		Time:       "09:30",
		Location:   "Salle A",
		TotalSeats: 20,
		Level:      &level,
	}
	require.Nil(t, Validate(req))

	req.Language = "Klingon"
	req.Time = "9h30"
	req.TotalSeats = 101
	bad := "Z9"
	req.Level = &bad
	got := fields(Validate(req))
	assert.Contains(t, got, "language")
	assert.Contains(t, got, "time")
	assert.Equal(t, "must be at most 100", got["totalSeats"])
	assert.Contains(t, got, "level")
}

func TestSessionRequestToModelDefaults(t *testing.T) {
	s := SessionRequest{Language: "Arabe", Date: "2026-09-01", Time: "14:00", Location: "Lyon", TotalSeats: 8}.ToModel("s1")
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), s.Date)
	assert.Equal(t, 8, s.AvailableSeats)
	assert.Equal(t, 120, s.DurationMinutes)
	assert.True(t, s.IsActive)
	assert.Zero(t, s.Price)
}

func TestCreateBookingRequest(t *testing.T) {
	got := fields(Validate(CreateBookingRequest{}))
	assert.Equal(t, "is required", got["sessionId"])
}
