package application

import (
	"context"
	"errors"

	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/domain"
	"github.com/villa-stay/service-booking/internal/platform/retry"
)

// EventPublisher announces booking changes to other services. Publishing is
// best-effort: the booking store stays the source of truth.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, b *booking.Booking) error
	PublishStatusChanged(ctx context.Context, b booking.StatusChange) error
}

// storeRetryable retries transient store failures. Domain outcomes such as
// NotFound or Conflict are answers, not failures.
func storeRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !domain.IsDomainError(err)
}

// withStore runs a store operation under policy and turns exhausted transient
// failures into StoreUnavailable.
func withStore[T any](ctx context.Context, policy retry.Policy, retryable retry.Retryable, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := retry.DoValue(ctx, policy, retryable, op)
	if err != nil && !domain.IsDomainError(err) {
		return v, domain.NewStoreUnavailableError(err)
	}
	return v, err
}
