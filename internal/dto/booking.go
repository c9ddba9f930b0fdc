package dto

// CreateBookingRequest reserves a seat in a session.
type CreateBookingRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// CancelBookingRequest optionally explains a cancellation.
type CancelBookingRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// PageQuery is the query string of paginated listings.
type PageQuery struct {
	Page         int `query:"page"`
	ItemsPerPage int `query:"itemsPerPage"`
}
