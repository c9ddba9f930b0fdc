package dto

import (
	"time"

	"github.com/iliyamo/lang-test-booking/internal/model"
)

// DateLayout is the wire format of session dates.
const DateLayout = "2006-01-02"

// SessionRequest creates or fully replaces a session.
type SessionRequest struct {
	Language        string   `json:"language" validate:"required,language"`
	Date            string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string   `json:"time" validate:"required,datetime=15:04"`
	Location        string   `json:"location" validate:"required,min=3,max=200"`
	TotalSeats      int      `json:"totalSeats" validate:"required,min=1,max=100"`
	Description     *string  `json:"description" validate:"omitempty,max=1000"`
	Level           *string  `json:"level" validate:"omitempty,level"`
	DurationMinutes *int     `json:"durationMinutes" validate:"omitempty,min=1"`
	Price           *float64 `json:"price" validate:"omitempty,min=0"`
	IsActive        *bool    `json:"isActive"`
}

// ToModel converts a validated request into a session with id.  Optional
// fields take their defaults.
func (r SessionRequest) ToModel(id string) model.Session {
	date, _ := time.ParseInLocation(DateLayout, r.Date, time.UTC)
	s := model.Session{
		ID:              id,
		Language:        r.Language,
		Date:            date,
		Time:            r.Time,
		Location:        r.Location,
		TotalSeats:      r.TotalSeats,
		AvailableSeats:  r.TotalSeats,
		Description:     r.Description,
		Level:           r.Level,
		DurationMinutes: model.DefaultDurationMinutes,
		IsActive:        true,
	}
	if r.DurationMinutes != nil {
		s.DurationMinutes = *r.DurationMinutes
	}
	if r.Price != nil {
		s.Price = *r.Price
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
	return s
}

// ApplyTo copies the request onto an existing session.  Required fields are
// always written; optional fields only when present, so an update that omits
// them keeps the stored price, level, description, duration and active flag.
// AvailableSeats is left to the store, which shifts it by the seat delta.
func (r SessionRequest) ApplyTo(s *model.Session) {
	s.Language = r.Language
	s.Date, _ = time.ParseInLocation(DateLayout, r.Date, time.UTC)
	s.Time = r.Time
	s.Location = r.Location
	s.TotalSeats = r.TotalSeats
	if r.Description != nil {
		s.Description = r.Description
	}
	if r.Level != nil {
		s.Level = r.Level
	}
	if r.DurationMinutes != nil {
		s.DurationMinutes = *r.DurationMinutes
	}
	if r.Price != nil {
		s.Price = *r.Price
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

// SessionQuery is the query string of the public session listing.
type SessionQuery struct {
	Page         int    `query:"page"`
	ItemsPerPage int    `query:"itemsPerPage"`
	Language     string `query:"language"`
	Level        string `query:"level"`
}
