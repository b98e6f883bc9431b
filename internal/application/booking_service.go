package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/domain/coupon"
	"github.com/villa-stay/service-booking/internal/platform/domain"
	"github.com/villa-stay/service-booking/internal/platform/retry"
)

// CreateBookingRequest is the DTO for creating a booking from the guest form.
type CreateBookingRequest struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	Address      string `json:"address"`
	PostalCode   string `json:"postal_code"`
	Prefecture   string `json:"prefecture"`
	City         string `json:"city"`
	Street       string `json:"street"`
	CheckInDate  string `json:"check_in_date" binding:"required"`
	CheckOutDate string `json:"check_out_date" binding:"required"`
	Guests       int    `json:"guests"`
	Amount       int64  `json:"amount" binding:"required"`
	Currency     string `json:"currency"`
	CouponCode   string `json:"coupon_code"`
}

// FormattedAddress returns Address, or the address parts joined in postal order.
func (r CreateBookingRequest) FormattedAddress() string {
	if strings.TrimSpace(r.Address) != "" {
		return r.Address
	}
	var parts []string
	for _, p := range []string{r.PostalCode, r.Prefecture, r.City, r.Street} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// BookingDTO is the API response DTO for booking data.
type BookingDTO struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address,omitempty"`
	CheckInDate    string    `json:"check_in_date"`
	CheckOutDate   string    `json:"check_out_date"`
	Nights         int       `json:"nights"`
	Guests         int       `json:"guests"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	CouponCode     string    `json:"coupon_code,omitempty"`
	DiscountAmount int64     `json:"discount_amount,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusDTO tells the client where a booking stands and what to do next.
type StatusDTO struct {
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	CanPay    bool      `json:"can_pay"`
	NextStep  string    `json:"next_step"`
}

// BookingStatsDTO holds booking counts for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// BookingService is the application service for creating and querying bookings.
type BookingService struct {
	repo       booking.BookingRepository
	coupons    coupon.CouponRepository
	publisher  EventPublisher
	storeRetry retry.Policy
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo booking.BookingRepository,
	coupons coupon.CouponRepository,
	publisher EventPublisher,
	storeRetry retry.Policy,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:       repo,
		coupons:    coupons,
		publisher:  publisher,
		storeRetry: storeRetry,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking validates the guest form, applies a coupon and stores a pending booking.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingDTO, error) {
	checkIn, err := booking.ParseDate(req.CheckInDate)
	if err != nil {
		return nil, err
	}
	checkOut, err := booking.ParseDate(req.CheckOutDate)
	if err != nil {
		return nil, err
	}

	b, err := booking.NewBooking(
		booking.Guest{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Address:   req.FormattedAddress(),
		},
		booking.Stay{CheckIn: checkIn, CheckOut: checkOut, Guests: req.Guests},
		req.Amount,
		req.Currency,
	)
	if err != nil {
		return nil, err
	}

	code := coupon.NormalizeCode(req.CouponCode)
	if code != "" {
		if err := s.applyCoupon(ctx, b, code); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, b, b.CouponCode()); err != nil {
		if domain.IsDomainError(err) {
			return nil, err
		}
		s.logger.Error("failed to create booking", zap.Error(err))
		return nil, domain.NewStoreUnavailableError(err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.String("email", b.Email()),
		zap.Int64("amount", b.Amount()),
		zap.String("coupon", b.CouponCode()),
	)
	if err := s.publisher.PublishBookingCreated(ctx, b); err != nil {
		s.logger.Warn("failed to publish booking created event",
			zap.String("booking_id", b.ID().String()), zap.Error(err))
	}

	dto := toBookingDTO(b)
	return &dto, nil
}

func (s *BookingService) applyCoupon(ctx context.Context, b *booking.Booking, code string) error {
	c, err := withStore(ctx, s.storeRetry, storeRetryable, func(ctx context.Context) (*coupon.Coupon, error) {
		return s.coupons.FindByCode(ctx, code)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewBadRequestError("coupon " + code + " does not exist")
		}
		return err
	}
	discount, err := c.CalculateDiscount(b.Amount(), s.now())
	if err != nil {
		return err
	}
	if discount <= 0 {
		return domain.NewBadRequestError("coupon " + code + " gives no discount on this amount")
	}
	return b.ApplyDiscount(c.Code(), discount)
}

// GetBooking retrieves a booking by its ID.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// GetStatus returns the current status of a booking.
func (s *BookingService) GetStatus(ctx context.Context, id uuid.UUID) (*StatusDTO, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStatusDTO(b), nil
}

// LookupStatus returns the status of the newest booking for email and amount.
func (s *BookingService) LookupStatus(ctx context.Context, email string, amount int64) (*StatusDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || amount <= 0 {
		return nil, domain.NewBadRequestError("email and a positive amount are required")
	}
	b, err := withStore(ctx, s.storeRetry, storeRetryable, func(ctx context.Context) (*booking.Booking, error) {
		return s.repo.FindLatestByEmailAndAmount(ctx, email, amount)
	})
	if err != nil {
		return nil, err
	}
	return toStatusDTO(b), nil
}

// ListBookings returns a paginated list of bookings (admin).
func (s *BookingService) ListBookings(ctx context.Context, status string, page, limit int) ([]BookingDTO, int64, error) {
	filter := booking.ListFilter{Page: page, Limit: limit}
	if status != "" {
		st, err := booking.ParseStatus(status)
		if err != nil {
			return nil, 0, domain.NewBadRequestError(err.Error())
		}
		filter.Status = &st
	}

	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b)
	}
	return dtos, total, nil
}

// GetStats returns booking counts per status (admin).
func (s *BookingService) GetStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BookingStatsDTO{ByStatus: make(map[string]int64, len(counts))}
	for _, st := range booking.AllStatuses() {
		stats.ByStatus[st.String()] = counts[st]
		stats.TotalBookings += counts[st]
	}
	return stats, nil
}

func (s *BookingService) find(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return withStore(ctx, s.storeRetry, storeRetryable, func(ctx context.Context) (*booking.Booking, error) {
		return s.repo.FindByID(ctx, id)
	})
}

func toBookingDTO(b *booking.Booking) BookingDTO {
	guest, stay := b.Guest(), b.Stay()
	return BookingDTO{
		ID:             b.ID(),
		FirstName:      guest.FirstName,
		LastName:       guest.LastName,
		Email:          guest.Email,
		Phone:          guest.Phone,
		Address:        guest.Address,
		CheckInDate:    stay.CheckIn.Format(booking.DateLayout),
		CheckOutDate:   stay.CheckOut.Format(booking.DateLayout),
		Nights:         stay.Nights(),
		Guests:         stay.Guests,
		Amount:         b.Amount(),
		Currency:       b.Currency(),
		CouponCode:     b.CouponCode(),
		DiscountAmount: b.DiscountAmount(),
		Status:         b.Status().String(),
		CreatedAt:      b.CreatedAt(),
		UpdatedAt:      b.UpdatedAt(),
	}
}

func toStatusDTO(b *booking.Booking) *StatusDTO {
	return &StatusDTO{
		BookingID: b.ID(),
		Status:    b.Status().String(),
		CanPay:    b.Status().CanPay(),
		NextStep:  string(b.Status().NextStep()),
	}
}
