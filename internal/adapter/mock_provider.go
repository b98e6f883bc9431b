package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockProvider is a development/testing implementation of PaymentProvider.
// It simulates KOMOJU without requiring a merchant account.
type MockProvider struct {
	baseURL string
	logger  *zap.Logger
}

// NewMockProvider creates a new mock provider for development.
func NewMockProvider(baseURL string, logger *zap.Logger) *MockProvider {
	return &MockProvider{baseURL: baseURL, logger: logger}
}

// CreateSession simulates opening a session and returns a local redirect URL.
func (m *MockProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	id := fmt.Sprintf("sess_mock_%s", uuid.New().String()[:8])
	url := fmt.Sprintf("%s/mock-checkout/%s?booking_id=%s", m.baseURL, id, req.BookingID)

	m.logger.Info("[MOCK KOMOJU] session created",
		zap.String("session_id", id),
		zap.String("booking_id", req.BookingID),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
	)
	return Session{ID: id, URL: url}, nil
}
