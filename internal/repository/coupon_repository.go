package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	couponDomain "github.com/villa-stay/service-booking/internal/domain/coupon"
	"github.com/villa-stay/service-booking/internal/platform/domain"
)

// CouponModel is the GORM model for the coupons table.
type CouponModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code          string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	DiscountType  string    `gorm:"type:varchar(20);not null"`
	DiscountValue int64     `gorm:"not null"`
	MinAmount     int64     `gorm:"not null;default:0"`
	MaxDiscount   int64     `gorm:"not null;default:0"`
	MaxUses       int       `gorm:"not null;default:0"`
	CurrentUses   int       `gorm:"not null;default:0"`
	ValidFrom     time.Time `gorm:"type:timestamptz;not null"`
	ValidUntil    time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CouponModel) TableName() string { return "coupons" }

// GormCouponRepository implements CouponRepository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// Save persists a new coupon. A duplicate code is reported as a conflict.
func (r *GormCouponRepository) Save(ctx context.Context, c *couponDomain.Coupon) error {
	model := toCouponModel(c)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("coupon " + c.Code() + " already exists")
		}
		return err
	}
	return nil
}

// FindByCode returns a coupon by its code string.
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Coupon", code)
		}
		return nil, err
	}
	return toCouponDomain(&model), nil
}

// FindActive returns all coupons valid at now with uses left.
func (r *GormCouponRepository) FindActive(ctx context.Context, now time.Time) ([]*couponDomain.Coupon, error) {
	var models []CouponModel
	if err := r.db.WithContext(ctx).
		Where("valid_from <= ? AND valid_until > ?", now, now).
		Where("max_uses = 0 OR current_uses < max_uses").
		Order("valid_until ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	coupons := make([]*couponDomain.Coupon, len(models))
	for i := range models {
		coupons[i] = toCouponDomain(&models[i])
	}
	return coupons, nil
}

// redeemCoupon consumes one use of code inside tx, only if it is still valid.
func redeemCoupon(tx *gorm.DB, code string) error {
	now := time.Now().UTC()
	res := tx.Model(&CouponModel{}).
		Where("code = ? AND valid_from <= ? AND valid_until > ?", code, now, now).
		Where("max_uses = 0 OR current_uses < max_uses").
		Updates(map[string]interface{}{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NewBadRequestError("coupon " + code + " is no longer valid")
	}
	return nil
}

// releaseCoupon gives back one use of code. It never drops below zero.
func releaseCoupon(tx *gorm.DB, code string) error {
	return tx.Model(&CouponModel{}).
		Where("code = ? AND current_uses > 0", code).
		Updates(map[string]interface{}{
			"current_uses": gorm.Expr("current_uses - 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func toCouponModel(c *couponDomain.Coupon) CouponModel {
	return CouponModel{
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
		UpdatedAt:     c.UpdatedAt(),
	}
}

func toCouponDomain(m *CouponModel) *couponDomain.Coupon {
	return couponDomain.Reconstitute(
		m.ID, m.Code, couponDomain.DiscountType(m.DiscountType),
		m.DiscountValue, m.MinAmount, m.MaxDiscount,
		m.MaxUses, m.CurrentUses,
		m.ValidFrom, m.ValidUntil,
		m.CreatedAt, m.UpdatedAt,
	)
}
