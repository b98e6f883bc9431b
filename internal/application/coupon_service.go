package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/domain/coupon"
	"github.com/villa-stay/service-booking/internal/platform/domain"
)

// CreateCouponRequest holds data to create a coupon.
type CreateCouponRequest struct {
	Code          string `json:"code" binding:"required"`
	DiscountType  string `json:"discount_type" binding:"required"`
	DiscountValue int64  `json:"discount_value" binding:"required"`
	MinAmount     int64  `json:"min_amount"`
	MaxDiscount   int64  `json:"max_discount"`
	MaxUses       int    `json:"max_uses"`
	ValidFrom     string `json:"valid_from" binding:"required"`
	ValidUntil    string `json:"valid_until" binding:"required"`
}

// ValidateCouponRequest holds data to validate a coupon against a booking amount.
type ValidateCouponRequest struct {
	Code   string `json:"code" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// CouponDTO is the API response representation of a coupon.
type CouponDTO struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	MinAmount     int64     `json:"min_amount"`
	MaxDiscount   int64     `json:"max_discount"`
	MaxUses       int       `json:"max_uses"`
	CurrentUses   int       `json:"current_uses"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidUntil    time.Time `json:"valid_until"`
	CreatedAt     time.Time `json:"created_at"`
}

// CouponValidationDTO is the result of validating a coupon.
type CouponValidationDTO struct {
	Valid    bool   `json:"valid"`
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CouponService handles coupon use cases.
type CouponService struct {
	repo   coupon.CouponRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo coupon.CouponRepository, logger *zap.Logger) *CouponService {
	return &CouponService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateCoupon creates a new coupon (admin only).
func (s *CouponService) CreateCoupon(ctx context.Context, req CreateCouponRequest) (*CouponDTO, error) {
	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return nil, domain.NewBadRequestError("invalid valid_from format (use RFC3339)")
	}
	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		return nil, domain.NewBadRequestError("invalid valid_until format (use RFC3339)")
	}

	c, err := coupon.NewCoupon(
		req.Code,
		coupon.DiscountType(req.DiscountType),
		req.DiscountValue,
		req.MinAmount,
		req.MaxDiscount,
		req.MaxUses,
		validFrom,
		validUntil,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("coupon created", zap.String("code", c.Code()))
	return toCouponDTO(c), nil
}

// ValidateCoupon checks whether a coupon applies to amount and computes the discount.
// An unusable coupon is a normal answer, not an error.
func (s *CouponService) ValidateCoupon(ctx context.Context, req ValidateCouponRequest) (*CouponValidationDTO, error) {
	code := coupon.NormalizeCode(req.Code)
	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &CouponValidationDTO{Valid: false, Code: code, Message: "coupon not found"}, nil
		}
		return nil, err
	}

	now := s.now()
	if !c.IsValidAt(now) {
		return &CouponValidationDTO{Valid: false, Code: code, Message: "coupon is expired or fully used"}, nil
	}

	discount, err := c.CalculateDiscount(req.Amount, now)
	if err != nil {
		return &CouponValidationDTO{Valid: false, Code: code, Message: err.Error()}, nil
	}
	if discount <= 0 {
		return &CouponValidationDTO{Valid: false, Code: code, Message: "coupon gives no discount on this amount"}, nil
	}

	return &CouponValidationDTO{
		Valid:    true,
		Code:     c.Code(),
		Discount: discount,
		Total:    req.Amount - discount,
	}, nil
}

// GetActiveCoupons returns all currently usable coupons.
func (s *CouponService) GetActiveCoupons(ctx context.Context) ([]*CouponDTO, error) {
	coupons, err := s.repo.FindActive(ctx, s.now())
	if err != nil {
		return nil, err
	}

	dtos := make([]*CouponDTO, len(coupons))
	for i, c := range coupons {
		dtos[i] = toCouponDTO(c)
	}
	return dtos, nil
}

func toCouponDTO(c *coupon.Coupon) *CouponDTO {
	return &CouponDTO{
		ID:            c.ID(),
		Code:          c.Code(),
		DiscountType:  string(c.DiscountType()),
		DiscountValue: c.DiscountValue(),
		MinAmount:     c.MinAmount(),
		MaxDiscount:   c.MaxDiscount(),
		MaxUses:       c.MaxUses(),
		CurrentUses:   c.CurrentUses(),
		ValidFrom:     c.ValidFrom(),
		ValidUntil:    c.ValidUntil(),
		CreatedAt:     c.CreatedAt(),
	}
}
