// Package queue carries booking events over RabbitMQ: a publisher used by
// the booking workflow and a background consumer that appends every event
// to a log file.
package queue

// Queue names; each event type has its own durable queue.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is confirmed or cancelled.  It
// carries enough of the session for downstream consumers to log or notify
// without querying the primary store.
type BookingEvent struct {
	Type        string `json:"type"`
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	Language    string `json:"language,omitempty"`
	SessionDate string `json:"session_date,omitempty"`
	SessionTime string `json:"session_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Reason      string `json:"reason,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
