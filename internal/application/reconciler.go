package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/adapter"
	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/domain"
	"github.com/villa-stay/service-booking/internal/platform/retry"
)

// WebhookResult reports what a provider event did to its booking.
type WebhookResult struct {
	EventType        string `json:"event_type"`
	BookingID        string `json:"booking_id,omitempty"`
	Ignored          bool   `json:"ignored,omitempty"`
	Applied          bool   `json:"applied"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
	PreviousStatus   string `json:"previous_status,omitempty"`
	Status           string `json:"status,omitempty"`
}

// Reconciler applies provider webhook events to bookings. Deliveries are
// at-least-once and unordered; every mutation is a conditional update, so
// replays and late events converge on the same status.
type Reconciler struct {
	repo       booking.BookingRepository
	verifier   *adapter.WebhookVerifier
	publisher  EventPublisher
	storeRetry retry.Policy
	logger     *zap.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	repo booking.BookingRepository,
	verifier *adapter.WebhookVerifier,
	publisher EventPublisher,
	storeRetry retry.Policy,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		repo:       repo,
		verifier:   verifier,
		publisher:  publisher,
		storeRetry: storeRetry,
		logger:     logger,
	}
}

// Handle verifies, parses and applies one raw webhook delivery.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := r.verifier.Verify(body, signature); err != nil {
		r.logger.Warn("webhook signature rejected", zap.Int("payload_bytes", len(body)))
		return nil, err
	}

	event, err := adapter.ParseWebhookEvent(body)
	if err != nil {
		r.logger.Warn("webhook payload rejected", zap.Error(err))
		return nil, err
	}
	log := r.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("booking_id", event.BookingID),
	)
	res := &WebhookResult{EventType: event.Type, BookingID: event.BookingID}

	trigger, ok := event.Trigger()
	if !ok {
		log.Info("ignoring unhandled webhook event type")
		res.Ignored = true
		return res, nil
	}

	id, err := uuid.Parse(event.BookingID)
	if err != nil {
		return nil, domain.NewNotFoundError("Booking", event.BookingID)
	}

	result, err := withStore(ctx, r.storeRetry, storeRetryable, func(ctx context.Context) (booking.TransitionResult, error) {
		return r.repo.Transition(ctx, id, trigger, "")
	})
	if err != nil {
		log.Error("webhook transition failed", zap.Error(err))
		return nil, err
	}

	res.Applied = result.Applied
	res.PreviousStatus = result.Previous.String()
	res.Status = result.Current.String()

	if !result.Applied {
		res.AlreadyProcessed = result.Current == trigger.Target()
		log.Info("webhook event is a no-op for current status",
			zap.String("status", result.Current.String()),
			zap.Bool("already_processed", res.AlreadyProcessed),
		)
		return res, nil
	}

	log.Info("booking status updated",
		zap.String("from", result.Previous.String()),
		zap.String("to", result.Current.String()),
	)
	if err := r.publisher.PublishStatusChanged(ctx, result.Change(id, trigger)); err != nil {
		log.Warn("failed to publish status change", zap.Error(err))
	}
	return res, nil
}
