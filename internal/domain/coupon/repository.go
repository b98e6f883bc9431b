package coupon

import (
	"context"
	"time"
)

// CouponRepository defines persistence operations for coupons.
// Redemption happens inside booking creation, see booking.BookingRepository.Create.
type CouponRepository interface {
	Save(ctx context.Context, c *Coupon) error
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindActive(ctx context.Context, now time.Time) ([]*Coupon, error)
}
