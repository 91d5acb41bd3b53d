package model

import "time"

type EventType string

const (
	EventBookingCreated   EventType = "booking_created"
	EventBookingConfirmed EventType = "booking_confirmed"
	EventBookingCancelled EventType = "booking_cancelled"
)

// BookingEvent публикуется после фиксации изменения бронирования.
type BookingEvent struct {
	Type       EventType `json:"type"`
	Booking    Booking   `json:"booking"`
	OccurredAt time.Time `json:"occurred_at"`
}
