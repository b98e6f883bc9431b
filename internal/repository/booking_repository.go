package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/domain"
)

// stayLockKey serializes overlap checks across concurrent booking inserts.
const stayLockKey = 7_250_301

// BookingModel is the GORM persistence model for the bookings table.
type BookingModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	FirstName        string    `gorm:"type:varchar(100);not null"`
	LastName         string    `gorm:"type:varchar(100);not null"`
	Email            string    `gorm:"type:varchar(255);not null;index:idx_bookings_email_amount"`
	Phone            string    `gorm:"type:varchar(30);not null"`
	Address          string    `gorm:"type:text"`
	Amount           int64     `gorm:"not null;index:idx_bookings_email_amount"`
	Currency         string    `gorm:"type:varchar(3);not null;default:'JPY'"`
	Guests           int       `gorm:"not null;default:1"`
	CheckInDate      time.Time `gorm:"type:date;not null"`
	CheckOutDate     time.Time `gorm:"type:date;not null"`
	CouponCode       string    `gorm:"type:varchar(50)"`
	DiscountAmount   int64     `gorm:"not null;default:0"`
	Status           string    `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentSessionID string    `gorm:"type:varchar(255)"`
	CreatedAt        time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingRepositoryImpl is the GORM-based implementation of BookingRepository.
type BookingRepositoryImpl struct {
	db *gorm.DB
}

// NewBookingRepository creates a new GORM-based booking repository.
func NewBookingRepository(db *gorm.DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{db: db}
}

// FindByID retrieves a booking by its unique ID.
func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, err
	}
	return toDomain(&model)
}

// FindLatestByEmailAndAmount returns the newest booking for email and amount.
func (r *BookingRepositoryImpl) FindLatestByEmailAndAmount(ctx context.Context, email string, amount int64) (*bookingDomain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).
		Where("email = ? AND amount = ?", email, amount).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", fmt.Sprintf("for %s / %d", email, amount))
		}
		return nil, err
	}
	return toDomain(&model)
}

// Create inserts a booking after checking, under a transaction-scoped advisory
// lock, that no date-holding booking overlaps its stay.
func (r *BookingRepositoryImpl) Create(ctx context.Context, b *bookingDomain.Booking, couponCode string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", stayLockKey).Error; err != nil {
			return err
		}

		if err := ensureAvailable(tx, uuid.Nil, b.Stay()); err != nil {
			return err
		}

		if couponCode != "" {
			if err := redeemCoupon(tx, couponCode); err != nil {
				return err
			}
		}

		return tx.Create(toModel(b)).Error
	})
}

// CheckAvailability reports Conflict when a date-holding booking other than b
// overlaps b's stay. It takes no lock; Transition re-checks under the lock.
func (r *BookingRepositoryImpl) CheckAvailability(ctx context.Context, b *bookingDomain.Booking) error {
	return ensureAvailable(r.db.WithContext(ctx), b.ID(), b.Stay())
}

// Transition applies trigger with a conditional update. The row is locked
// while its previous status is read, and the UPDATE itself carries the source
// guard, so a concurrent writer can never be overwritten.
//
// Opening a session makes a booking hold its dates, so that transition takes
// the same advisory lock as Create and fails with Conflict when another
// holder overlaps. An applied expiry gives back the booking's coupon use.
func (r *BookingRepositoryImpl) Transition(ctx context.Context, id uuid.UUID, trigger bookingDomain.Trigger, sessionID string) (bookingDomain.TransitionResult, error) {
	var result bookingDomain.TransitionResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Advisory lock before the row lock, the same order Create uses.
		if trigger == bookingDomain.TriggerSessionCreated {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", stayLockKey).Error; err != nil {
				return err
			}
		}

		var current BookingModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status", "check_in_date", "check_out_date", "coupon_code").
			Where("id = ?", id).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("Booking", id.String())
			}
			return err
		}
		previous, err := bookingDomain.ParseStatus(current.Status)
		if err != nil {
			return err
		}

		if trigger == bookingDomain.TriggerSessionCreated && trigger.Accepts(previous) {
			stay := bookingDomain.Stay{CheckIn: current.CheckInDate.UTC(), CheckOut: current.CheckOutDate.UTC()}
			if err := ensureAvailable(tx, current.ID, stay); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"status":     trigger.Target().String(),
			"updated_at": time.Now().UTC(),
		}
		if sessionID != "" {
			updates["payment_session_id"] = sessionID
		}

		res := tx.Model(&BookingModel{}).
			Where("id = ? AND status IN ?", id, trigger.SourceStrings()).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}

		result.Previous = previous
		if res.RowsAffected == 0 {
			result.Current = previous
			return nil
		}
		result.Applied = true
		result.Current = trigger.Target()

		if trigger == bookingDomain.TriggerExpired && current.CouponCode != "" {
			return releaseCoupon(tx, current.CouponCode)
		}
		return nil
	})
	if err != nil {
		return bookingDomain.TransitionResult{}, err
	}
	return result, nil
}

// List retrieves bookings with pagination (admin).
func (r *BookingRepositoryImpl) List(ctx context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&BookingModel{})
	if filter.Status != nil {
		q = q.Where("status = ?", filter.Status.String())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []BookingModel
	offset := (filter.Page - 1) * filter.Limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	bookings := make([]*bookingDomain.Booking, 0, len(models))
	for i := range models {
		b, err := toDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *BookingRepositoryImpl) CountByStatus(ctx context.Context) (map[bookingDomain.Status]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[bookingDomain.Status]int64, len(results))
	for _, sc := range results {
		s, err := bookingDomain.ParseStatus(sc.Status)
		if err != nil {
			return nil, err
		}
		counts[s] = sc.Count
	}
	return counts, nil
}

// ensureAvailable fails with Conflict when a date-holding booking other than
// exclude overlaps stay. Check-out day is free for the next check-in.
func ensureAvailable(tx *gorm.DB, exclude uuid.UUID, stay bookingDomain.Stay) error {
	var existing BookingModel
	err := tx.Model(&BookingModel{}).
		Select("id").
		Where("status IN ?", holdingStatuses()).
		Where("check_in_date < ? AND check_out_date > ?", stay.CheckOut, stay.CheckIn).
		Where("id <> ?", exclude).
		Take(&existing).Error
	if err == nil {
		return domain.NewConflictError(fmt.Sprintf(
			"dates %s to %s are no longer available",
			stay.CheckIn.Format(bookingDomain.DateLayout), stay.CheckOut.Format(bookingDomain.DateLayout),
		))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func holdingStatuses() []string {
	var out []string
	for _, s := range bookingDomain.AllStatuses() {
		if s.HoldsDates() {
			out = append(out, s.String())
		}
	}
	return out
}

// toDomain maps a BookingModel to the domain Booking aggregate.
func toDomain(model *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseStatus(model.Status)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", model.ID, err)
	}
	return bookingDomain.Reconstitute(
		model.ID,
		bookingDomain.Guest{
			FirstName: model.FirstName,
			LastName:  model.LastName,
			Email:     model.Email,
			Phone:     model.Phone,
			Address:   model.Address,
		},
		bookingDomain.Stay{
			CheckIn:  model.CheckInDate.UTC(),
			CheckOut: model.CheckOutDate.UTC(),
			Guests:   model.Guests,
		},
		model.Amount,
		model.Currency,
		model.CouponCode,
		model.DiscountAmount,
		status,
		model.PaymentSessionID,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

// toModel maps a domain Booking aggregate to a BookingModel for persistence.
func toModel(b *bookingDomain.Booking) *BookingModel {
	guest, stay := b.Guest(), b.Stay()
	return &BookingModel{
		ID:               b.ID(),
		FirstName:        guest.FirstName,
		LastName:         guest.LastName,
		Email:            guest.Email,
		Phone:            guest.Phone,
		Address:          guest.Address,
		Amount:           b.Amount(),
		Currency:         b.Currency(),
		Guests:           stay.Guests,
		CheckInDate:      stay.CheckIn,
		CheckOutDate:     stay.CheckOut,
		CouponCode:       b.CouponCode(),
		DiscountAmount:   b.DiscountAmount(),
		Status:           b.Status().String(),
		PaymentSessionID: b.PaymentSessionID(),
		CreatedAt:        b.CreatedAt(),
		UpdatedAt:        b.UpdatedAt(),
	}
}
