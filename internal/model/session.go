package model

import (
	"strconv"
	"strings"
	"time"
)

// Languages lists the languages a session can be scheduled for.
var Languages = []string{
	"Anglais", "Français", "Espagnol", "Allemand", "Italien",
	"Portugais", "Chinois", "Japonais", "Arabe",
}

// Levels lists the CEFR levels a session may target.
var Levels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// MaxSeats is the upper bound for a session's total seat count.
const MaxSeats = 100

// DefaultDurationMinutes is applied when a session is created without a duration.
const DefaultDurationMinutes = 120

// Session is a scheduled, capacity-limited language-test slot.  It is the
// sole authority over its seat counters: AvailableSeats only moves through
// the reserve/release operations of the storage layer or through an
// administrative edit of TotalSeats.
//
// Fields:
//  ID              – primary key identifier (UUID string).
//  Language        – one of Languages.
//  Date            – calendar day of the session (UTC midnight).
//  Time            – time of day, "HH:MM".
//  Location        – free text venue, 3..200 characters.
//  TotalSeats      – capacity, 1..MaxSeats.
//  AvailableSeats  – seats not yet taken, 0..TotalSeats.
//  Description     – optional free text.
//  Level           – optional CEFR level.
//  DurationMinutes – length of the test.
//  Price           – price in the session currency, >= 0.
//  IsActive        – inactive sessions cannot be booked.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Session struct {
	ID              string    `json:"id" bson:"_id"`
	Language        string    `json:"language" bson:"language"`
	Date            time.Time `json:"date" bson:"date"`
	Time            string    `json:"time" bson:"time"`
	Location        string    `json:"location" bson:"location"`
	TotalSeats      int       `json:"totalSeats" bson:"totalSeats"`
	AvailableSeats  int       `json:"availableSeats" bson:"availableSeats"`
	Description     *string   `json:"description" bson:"description,omitempty"`
	Level           *string   `json:"level" bson:"level,omitempty"`
	DurationMinutes int       `json:"durationMinutes" bson:"durationMinutes"`
	Price           float64   `json:"price" bson:"price"`
	IsActive        bool      `json:"isActive" bson:"isActive"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// StartsAt combines Date and Time into the instant the session begins.  A
// malformed Time falls back to midnight of Date.
func (s *Session) StartsAt() time.Time {
	d := s.Date.UTC()
	h, m := 0, 0
	if parts := strings.SplitN(s.Time, ":", 2); len(parts) == 2 {
		h, _ = strconv.Atoi(parts[0])
		m, _ = strconv.Atoi(parts[1])
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, time.UTC)
}

// IsPast reports whether the session has already started at now.
func (s *Session) IsPast(now time.Time) bool {
	return s.StartsAt().Before(now)
}

// HasAvailableSeats reports whether at least one seat is left.
func (s *Session) HasAvailableSeats() bool {
	return s.AvailableSeats > 0
}

// BookedSeats is the number of seats currently held by non-cancelled bookings.
func (s *Session) BookedSeats() int {
	return s.TotalSeats - s.AvailableSeats
}
