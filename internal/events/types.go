package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents  = "booking.events"
	TopicProviderEvents = "payment.provider-events"
)

// CloudEvent types published on TopicBookingEvents.
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
)

// SourceBookingService identifies this service as the event source.
const SourceBookingService = "service-booking"

// BookingCreatedEvent announces a new pending booking.
type BookingCreatedEvent struct {
	BookingID    uuid.UUID `json:"booking_id"`
	Email        string    `json:"email"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	CheckInDate  string    `json:"check_in_date"`
	CheckOutDate string    `json:"check_out_date"`
	Guests       int       `json:"guests"`
	CouponCode   string    `json:"coupon_code,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// BookingStatusChangedEvent announces an applied lifecycle transition.
type BookingStatusChangedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	Trigger    string    `json:"trigger"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Terminal   bool      `json:"terminal"`
	OccurredAt time.Time `json:"occurred_at"`
}
