package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/adapter"
	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/domain"
	"github.com/villa-stay/service-booking/internal/platform/retry"
)

// CreateSessionRequest is the DTO for opening a payment session. Amount,
// currency and email are optional; when sent they must match the booking.
type CreateSessionRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	ReturnURL string `json:"return_url"`
}

// SessionDTO carries the redirect target of a hosted payment session.
type SessionDTO struct {
	SessionURL string `json:"session_url"`
}

// CheckoutConfig bounds the store lookups and provider calls of CheckoutService.
type CheckoutConfig struct {
	StoreRetry      retry.Policy
	ProviderRetry   retry.Policy
	ProviderTimeout time.Duration
}

// CheckoutService opens provider payment sessions for pending bookings.
type CheckoutService struct {
	repo      booking.BookingRepository
	provider  adapter.PaymentProvider
	publisher EventPublisher
	cfg       CheckoutConfig
	logger    *zap.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	repo booking.BookingRepository,
	provider adapter.PaymentProvider,
	publisher EventPublisher,
	cfg CheckoutConfig,
	logger *zap.Logger,
) *CheckoutService {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	return &CheckoutService{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateSession re-reads the booking, requires it to be pending with its dates
// still free, opens a provider session and marks the booking processing. The
// processing write is best-effort; provider webhooks settle the final status
// either way. A Conflict from that write is not: another booking took the
// dates, so no session URL is handed out.
func (s *CheckoutService) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionDTO, error) {
	id, err := uuid.Parse(strings.TrimSpace(req.BookingID))
	if err != nil {
		return nil, domain.NewBadRequestError("booking_id must be a UUID")
	}
	log := s.logger.With(zap.String("booking_id", id.String()))

	// A booking created a moment ago may not be readable yet, so NotFound is retried too.
	b, err := withStore(ctx, s.cfg.StoreRetry, lookupRetryable, func(ctx context.Context) (*booking.Booking, error) {
		return s.repo.FindByID(ctx, id)
	})
	if err != nil {
		log.Warn("booking lookup failed", zap.Error(err))
		return nil, err
	}

	if !b.Status().CanPay() {
		log.Info("payment session refused", zap.String("status", b.Status().String()))
		return nil, domain.NewInvalidStateError(b.Status().String(), booking.StatusProcessing.String())
	}
	if err := matchesBooking(b, req); err != nil {
		return nil, err
	}
	if _, err := withStore(ctx, s.cfg.StoreRetry, storeRetryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.CheckAvailability(ctx, b)
	}); err != nil {
		log.Info("payment session refused", zap.Error(err))
		return nil, err
	}

	sessionReq := adapter.SessionRequest{
		BookingID: id.String(),
		Amount:    b.Amount(),
		Currency:  b.Currency(),
		Email:     b.Email(),
		Name:      b.Guest().FullName(),
		Phone:     b.Guest().Phone,
		ReturnURL: req.ReturnURL,
	}
	session, err := retry.DoValue(ctx, s.cfg.ProviderRetry, adapter.IsTransient, func(ctx context.Context) (adapter.Session, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		defer cancel()
		return s.provider.CreateSession(callCtx, sessionReq)
	})
	if err != nil {
		log.Error("payment provider call failed", zap.Error(err))
		return nil, domain.NewProviderUnavailableError(err)
	}

	result, err := withStore(ctx, s.cfg.StoreRetry, storeRetryable, func(ctx context.Context) (booking.TransitionResult, error) {
		return s.repo.Transition(ctx, id, booking.TriggerSessionCreated, session.ID)
	})
	switch {
	case errors.Is(err, domain.ErrConflict):
		log.Warn("dates taken while opening session", zap.String("session_id", session.ID))
		return nil, err
	case err != nil:
		log.Warn("could not mark booking processing", zap.Error(err))
	case !result.Applied:
		log.Info("booking moved on before processing write",
			zap.String("status", result.Current.String()))
	default:
		s.publishChange(ctx, result.Change(id, booking.TriggerSessionCreated))
	}

	log.Info("payment session ready", zap.String("session_id", session.ID))
	return &SessionDTO{SessionURL: session.URL}, nil
}

func (s *CheckoutService) publishChange(ctx context.Context, change booking.StatusChange) {
	if err := s.publisher.PublishStatusChanged(ctx, change); err != nil {
		s.logger.Warn("failed to publish status change",
			zap.String("booking_id", change.BookingID.String()), zap.Error(err))
	}
}

func lookupRetryable(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || storeRetryable(err)
}

func matchesBooking(b *booking.Booking, req CreateSessionRequest) error {
	if req.Amount != 0 && req.Amount != b.Amount() {
		return domain.NewBadRequestError("amount does not match the booking")
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, b.Currency()) {
		return domain.NewBadRequestError("currency does not match the booking")
	}
	if req.Email != "" && !strings.EqualFold(strings.TrimSpace(req.Email), b.Email()) {
		return domain.NewBadRequestError("email does not match the booking")
	}
	return nil
}
