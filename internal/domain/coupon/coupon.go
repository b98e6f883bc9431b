package coupon

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/villa-stay/service-booking/internal/platform/domain"
)

// DiscountType represents the type of discount.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// Coupon is the aggregate root for discount codes applied at booking time.
type Coupon struct {
	id            uuid.UUID
	code          string
	discountType  DiscountType
	discountValue int64 // percentage (1-100) or fixed amount in minor units
	minAmount     int64
	maxDiscount   int64
	maxUses       int
	currentUses   int
	validFrom     time.Time
	validUntil    time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

// NormalizeCode upper-cases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewCoupon creates a new coupon.
func NewCoupon(code string, discountType DiscountType, discountValue, minAmount, maxDiscount int64, maxUses int, validFrom, validUntil time.Time) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.NewBadRequestError("coupon code is required")
	}
	if discountType != DiscountTypePercentage && discountType != DiscountTypeFixed {
		return nil, domain.NewBadRequestError("invalid discount type: " + string(discountType))
	}
	if discountValue <= 0 {
		return nil, domain.NewBadRequestError("discount value must be positive")
	}
	if discountType == DiscountTypePercentage && discountValue > 100 {
		return nil, domain.NewBadRequestError("percentage discount cannot exceed 100")
	}
	if minAmount < 0 || maxDiscount < 0 || maxUses < 0 {
		return nil, domain.NewBadRequestError("limits must not be negative")
	}
	if !validUntil.After(validFrom) {
		return nil, domain.NewBadRequestError("valid_until must be after valid_from")
	}

	now := time.Now().UTC()
	return &Coupon{
		id:            uuid.New(),
		code:          code,
		discountType:  discountType,
		discountValue: discountValue,
		minAmount:     minAmount,
		maxDiscount:   maxDiscount,
		maxUses:       maxUses,
		validFrom:     validFrom.UTC(),
		validUntil:    validUntil.UTC(),
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Reconstitute rebuilds a Coupon from persistence.
func Reconstitute(id uuid.UUID, code string, discountType DiscountType, discountValue, minAmount, maxDiscount int64, maxUses, currentUses int, validFrom, validUntil, createdAt, updatedAt time.Time) *Coupon {
	return &Coupon{
		id: id, code: code, discountType: discountType, discountValue: discountValue,
		minAmount: minAmount, maxDiscount: maxDiscount,
		maxUses: maxUses, currentUses: currentUses,
		validFrom: validFrom, validUntil: validUntil,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// IsValidAt checks the validity window and remaining uses.
func (c *Coupon) IsValidAt(now time.Time) bool {
	return !now.Before(c.validFrom) && now.Before(c.validUntil) && (c.maxUses == 0 || c.currentUses < c.maxUses)
}

// CalculateDiscount returns the reduction for total at time now.
func (c *Coupon) CalculateDiscount(total int64, now time.Time) (int64, error) {
	if !c.IsValidAt(now) {
		return 0, domain.NewBadRequestError("coupon is no longer valid")
	}
	if total < c.minAmount {
		return 0, domain.NewBadRequestError("booking amount is below the coupon minimum")
	}

	var discount int64
	switch c.discountType {
	case DiscountTypePercentage:
		discount = total * c.discountValue / 100
	case DiscountTypeFixed:
		discount = c.discountValue
	}

	if c.maxDiscount > 0 && discount > c.maxDiscount {
		discount = c.maxDiscount
	}
	// A booking always keeps a payable amount.
	if discount >= total {
		discount = total - 1
	}
	return discount, nil
}

// Getters.
func (c *Coupon) ID() uuid.UUID              { return c.id }
func (c *Coupon) Code() string               { return c.code }
func (c *Coupon) DiscountType() DiscountType { return c.discountType }
func (c *Coupon) DiscountValue() int64       { return c.discountValue }
func (c *Coupon) MinAmount() int64           { return c.minAmount }
func (c *Coupon) MaxDiscount() int64         { return c.maxDiscount }
func (c *Coupon) MaxUses() int               { return c.maxUses }
func (c *Coupon) CurrentUses() int           { return c.currentUses }
func (c *Coupon) ValidFrom() time.Time       { return c.validFrom }
func (c *Coupon) ValidUntil() time.Time      { return c.validUntil }
func (c *Coupon) CreatedAt() time.Time       { return c.createdAt }
func (c *Coupon) UpdatedAt() time.Time       { return c.updatedAt }
