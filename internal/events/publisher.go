package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/kafka"
)

// EventWriter writes a CloudEvent to a topic. *kafka.Producer satisfies it.
type EventWriter interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// BookingEventPublisher publishes booking lifecycle events as CloudEvents.
type BookingEventPublisher struct {
	writer EventWriter
	topic  string
	logger *zap.Logger
}

// NewBookingEventPublisher creates a publisher writing to topic.
func NewBookingEventPublisher(writer EventWriter, topic string, logger *zap.Logger) *BookingEventPublisher {
	if topic == "" {
		topic = TopicBookingEvents
	}
	return &BookingEventPublisher{writer: writer, topic: topic, logger: logger}
}

// PublishBookingCreated emits booking.created.
func (p *BookingEventPublisher) PublishBookingCreated(ctx context.Context, b *booking.Booking) error {
	stay := b.Stay()
	return p.publish(ctx, BookingCreated, b.ID().String(), BookingCreatedEvent{
		BookingID:    b.ID(),
		Email:        b.Email(),
		Amount:       b.Amount(),
		Currency:     b.Currency(),
		CheckInDate:  stay.CheckIn.Format(booking.DateLayout),
		CheckOutDate: stay.CheckOut.Format(booking.DateLayout),
		Guests:       stay.Guests,
		CouponCode:   b.CouponCode(),
		OccurredAt:   b.CreatedAt(),
	})
}

// PublishStatusChanged emits booking.status_changed.
func (p *BookingEventPublisher) PublishStatusChanged(ctx context.Context, c booking.StatusChange) error {
	return p.publish(ctx, BookingStatusChanged, c.BookingID.String(), BookingStatusChangedEvent{
		BookingID:  c.BookingID,
		Trigger:    c.Trigger.String(),
		From:       c.From.String(),
		To:         c.To.String(),
		Terminal:   c.To.IsTerminal(),
		OccurredAt: c.At,
	})
}

func (p *BookingEventPublisher) publish(ctx context.Context, eventType, subject string, data interface{}) error {
	ce, err := kafka.NewCloudEvent(SourceBookingService, eventType, data)
	if err != nil {
		return err
	}
	ce.Subject = subject
	return p.writer.PublishEvent(ctx, p.topic, ce)
}

// NopPublisher drops every event. Used when no Kafka brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishBookingCreated(context.Context, *booking.Booking) error { return nil }

func (NopPublisher) PublishStatusChanged(context.Context, booking.StatusChange) error { return nil }
