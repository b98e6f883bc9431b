package booking

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/villa-stay/service-booking/internal/platform/domain"
)

// DateLayout is the wire format of check-in and check-out dates.
const DateLayout = "2006-01-02"

// DefaultCurrency is used when a booking is created without one.
const DefaultCurrency = "JPY"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9-]{10,}$`)
)

// Guest identifies the person making the booking.
type Guest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

// FullName joins last and first name the way they are shown to the provider.
func (g Guest) FullName() string {
	return strings.TrimSpace(g.LastName + " " + g.FirstName)
}

// Stay is the reserved date range.
type Stay struct {
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

// Nights returns the number of nights in the stay.
func (s Stay) Nights() int {
	return int(s.CheckOut.Sub(s.CheckIn).Hours() / 24)
}

// Overlaps reports whether two stays share at least one night.
// Check-out day is free for the next check-in.
func (s Stay) Overlaps(other Stay) bool {
	return s.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(s.CheckOut)
}

// Booking is the aggregate root for a guest reservation.
type Booking struct {
	id               uuid.UUID
	guest            Guest
	stay             Stay
	amount           int64
	currency         string
	couponCode       string
	discountAmount   int64
	status           Status
	paymentSessionID string
	createdAt        time.Time
	updatedAt        time.Time
}

// NewBooking validates input and creates a pending booking.
func NewBooking(guest Guest, stay Stay, amount int64, currency string) (*Booking, error) {
	guest.FirstName = strings.TrimSpace(guest.FirstName)
	guest.LastName = strings.TrimSpace(guest.LastName)
	guest.Email = strings.ToLower(strings.TrimSpace(guest.Email))
	guest.Phone = strings.TrimSpace(guest.Phone)
	guest.Address = strings.TrimSpace(guest.Address)

	if guest.LastName == "" {
		return nil, domain.NewBadRequestError("last name is required")
	}
	if guest.FirstName == "" {
		return nil, domain.NewBadRequestError("first name is required")
	}
	if !emailPattern.MatchString(guest.Email) {
		return nil, domain.NewBadRequestError("invalid email address")
	}
	if !phonePattern.MatchString(guest.Phone) {
		return nil, domain.NewBadRequestError("phone must be at least 10 digits or hyphens")
	}
	if amount <= 0 {
		return nil, domain.NewBadRequestError("amount must be positive")
	}

	stay.CheckIn = truncateDate(stay.CheckIn)
	stay.CheckOut = truncateDate(stay.CheckOut)
	if !stay.CheckIn.Before(stay.CheckOut) {
		return nil, domain.NewBadRequestError("check-in date must be before check-out date")
	}
	if stay.Guests == 0 {
		stay.Guests = 1
	}
	if stay.Guests < 1 {
		return nil, domain.NewBadRequestError("guests must be at least 1")
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := time.Now().UTC()
	return &Booking{
		id:        uuid.New(),
		guest:     guest,
		stay:      stay,
		amount:    amount,
		currency:  currency,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ApplyDiscount records a coupon reduction; amount becomes the discounted total.
func (b *Booking) ApplyDiscount(code string, discount int64) error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(b.status.String(), "discounted")
	}
	if discount <= 0 || discount >= b.amount {
		return domain.NewBadRequestError("discount must be positive and below the booking amount")
	}
	b.couponCode = code
	b.discountAmount = discount
	b.amount -= discount
	b.updatedAt = time.Now().UTC()
	return nil
}

// Apply fires trigger on the in-memory aggregate. A trigger whose sources do
// not include the current status leaves the booking unchanged and returns false.
func (b *Booking) Apply(trigger Trigger) bool {
	if !trigger.Accepts(b.status) {
		return false
	}
	b.status = trigger.Target()
	b.updatedAt = time.Now().UTC()
	return true
}

// Getters.
func (b *Booking) ID() uuid.UUID            { return b.id }
func (b *Booking) Guest() Guest             { return b.guest }
func (b *Booking) Email() string            { return b.guest.Email }
func (b *Booking) Stay() Stay               { return b.stay }
func (b *Booking) Amount() int64            { return b.amount }
func (b *Booking) Currency() string         { return b.currency }
func (b *Booking) CouponCode() string       { return b.couponCode }
func (b *Booking) DiscountAmount() int64    { return b.discountAmount }
func (b *Booking) Status() Status           { return b.status }
func (b *Booking) PaymentSessionID() string { return b.paymentSessionID }
func (b *Booking) CreatedAt() time.Time     { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time     { return b.updatedAt }

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(
	id uuid.UUID,
	guest Guest,
	stay Stay,
	amount int64,
	currency, couponCode string,
	discountAmount int64,
	status Status,
	paymentSessionID string,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:               id,
		guest:            guest,
		stay:             stay,
		amount:           amount,
		currency:         currency,
		couponCode:       couponCode,
		discountAmount:   discountAmount,
		status:           status,
		paymentSessionID: paymentSessionID,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, domain.NewBadRequestError("dates must be formatted as YYYY-MM-DD")
	}
	return t, nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
