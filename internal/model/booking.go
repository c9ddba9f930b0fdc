package model

import "time"

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Booking is a user's claim on one seat of a Session.  It references the
// session and the user by id; the Session pointer is only populated for
// display and is never persisted.
//
// Fields:
//  ID                 – primary key identifier (UUID string).
//  SessionID          – booked session.
//  UserID             – owner of the booking.
//  Status             – pending, confirmed, cancelled or completed.
//  CancellationReason – optional reason given on cancellation.
//  CancelledAt        – when the booking was cancelled.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Booking struct {
	ID                 string     `json:"id" bson:"_id"`
	SessionID          string     `json:"sessionId" bson:"sessionId"`
	UserID             string     `json:"userId" bson:"userId"`
	Status             string     `json:"status" bson:"status"`
	CancellationReason *string    `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt" bson:"updatedAt"`

	Session *Session `json:"session,omitempty" bson:"-"`
}

// IsCancelled reports whether the booking no longer holds a seat.
func (b *Booking) IsCancelled() bool { return b.Status == BookingCancelled }

// IsActive reports whether the booking still counts against the session.
func (b *Booking) IsActive() bool {
	return b.Status == BookingConfirmed || b.Status == BookingPending
}
