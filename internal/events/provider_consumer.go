package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/platform/domain"
	"github.com/villa-stay/service-booking/internal/platform/kafka"
)

// SignatureHeader is the Kafka header carrying the provider's webhook signature.
const SignatureHeader = "signature"

// WebhookHandler applies one raw provider delivery. *application.Reconciler satisfies it.
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, signature string) (*application.WebhookResult, error)
}

// ProviderEventConsumer feeds provider webhook payloads relayed through Kafka
// into the reconciler. The message value is the untouched webhook body.
type ProviderEventConsumer struct {
	consumer *kafka.Consumer
	handler  WebhookHandler
	logger   *zap.Logger
}

// NewProviderEventConsumer creates a new consumer for relayed provider events.
func NewProviderEventConsumer(
	brokers []string,
	groupID string,
	topic string,
	handler WebhookHandler,
	logger *zap.Logger,
) *ProviderEventConsumer {
	if topic == "" {
		topic = TopicProviderEvents
	}
	return &ProviderEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, topic, logger),
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming provider events. It blocks until the context is cancelled.
func (c *ProviderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage runs a relayed delivery through the reconciler. Rejected
// deliveries are logged and committed; only store failures are redelivered.
func (c *ProviderEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	res, err := c.handler.Handle(ctx, msg.Value, kafka.HeaderValue(msg, SignatureHeader))
	switch {
	case err == nil:
		c.logger.Info("provider event reconciled",
			zap.String("event_type", res.EventType),
			zap.String("booking_id", res.BookingID),
			zap.Bool("applied", res.Applied),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		return err
	default:
		c.logger.Warn("dropping provider event",
			zap.Error(err),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	}
}

// Close closes the underlying Kafka consumer.
func (c *ProviderEventConsumer) Close() error {
	return c.consumer.Close()
}
