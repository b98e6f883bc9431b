package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SessionRequest carries everything the provider needs to open a hosted checkout.
type SessionRequest struct {
	BookingID string
	Amount    int64
	Currency  string
	Email     string
	Name      string
	Phone     string
	ReturnURL string
}

// Session is a hosted checkout opened at the provider.
type Session struct {
	ID  string
	URL string
}

// PaymentProvider is the anti-corruption layer over the external payment provider.
type PaymentProvider interface {
	// CreateSession opens a hosted payment session that redirects the guest to pay.
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether retrying the call may succeed. Client errors
// other than throttling are final; network errors and 5xx are not.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusTooManyRequests || pe.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}
