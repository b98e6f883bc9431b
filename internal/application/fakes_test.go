package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/villa-stay/service-booking/internal/adapter"
	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/domain/coupon"
	"github.com/villa-stay/service-booking/internal/platform/domain"
	"github.com/villa-stay/service-booking/internal/platform/retry"
)

var (
	errStoreDown    = errors.New("connection refused")
	errProviderDown = errors.New("dial tcp: i/o timeout")
	fastRetry       = retry.Policy{Attempts: 3, Delay: time.Millisecond}
)

// memoryBookings is an in-memory BookingRepository with failure injection.
type memoryBookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*booking.Booking
	coupons  *memoryCoupons

	// failures makes the next N calls fail with errStoreDown.
	failures int
	// invisible hides a booking from the next N FindByID calls.
	invisible int

	transitions int
	findCalls   int
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{bookings: make(map[uuid.UUID]*booking.Booking)}
}

func (m *memoryBookings) fail() error {
	if m.failures > 0 {
		m.failures--
		return errStoreDown
	}
	return nil
}

func (m *memoryBookings) seed(status booking.Status) *booking.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := booking.Reconstitute(uuid.New(), booking.Guest{
		FirstName: "Taro", LastName: "Yamada", Email: "taro@example.com", Phone: "090-1234-5678",
	}, booking.Stay{
		CheckIn:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		Guests:   1,
	}, 15000, "JPY", "", 0, status, "", time.Now().UTC(), time.Now().UTC())
	m.bookings[b.ID()] = b
	return b
}

func (m *memoryBookings) status(id uuid.UUID) booking.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status()
}

func (m *memoryBookings) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if err := m.fail(); err != nil {
		return nil, err
	}
	if m.invisible > 0 {
		m.invisible--
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	cp := *b
	return &cp, nil
}

func (m *memoryBookings) FindLatestByEmailAndAmount(_ context.Context, email string, amount int64) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var matches []*booking.Booking
	for _, b := range m.bookings {
		if b.Email() == email && b.Amount() == amount {
			matches = append(matches, b)
		}
	}
	if len(matches) == 0 {
		return nil, domain.NewNotFoundError("Booking", email)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt().After(matches[j].CreatedAt()) })
	cp := *matches[0]
	return &cp, nil
}

func (m *memoryBookings) Create(_ context.Context, b *booking.Booking, couponCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if err := m.available(b.ID(), b.Stay()); err != nil {
		return err
	}
	if couponCode != "" {
		if err := m.coupons.redeem(couponCode); err != nil {
			return err
		}
	}
	cp := *b
	m.bookings[b.ID()] = &cp
	return nil
}

func (m *memoryBookings) available(exclude uuid.UUID, stay booking.Stay) error {
	for id, other := range m.bookings {
		if id != exclude && other.Status().HoldsDates() && other.Stay().Overlaps(stay) {
			return domain.NewConflictError("dates are no longer available")
		}
	}
	return nil
}

func (m *memoryBookings) CheckAvailability(_ context.Context, b *booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	return m.available(b.ID(), b.Stay())
}

func (m *memoryBookings) Transition(_ context.Context, id uuid.UUID, trigger booking.Trigger, _ string) (booking.TransitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return booking.TransitionResult{}, err
	}
	b, ok := m.bookings[id]
	if !ok {
		return booking.TransitionResult{}, domain.NewNotFoundError("Booking", id.String())
	}
	prev := b.Status()
	if trigger == booking.TriggerSessionCreated && trigger.Accepts(prev) {
		if err := m.available(id, b.Stay()); err != nil {
			return booking.TransitionResult{}, err
		}
	}
	if !b.Apply(trigger) {
		return booking.TransitionResult{Previous: prev, Current: prev}, nil
	}
	m.transitions++
	if trigger == booking.TriggerExpired && b.CouponCode() != "" && m.coupons != nil {
		m.coupons.release(b.CouponCode())
	}
	return booking.TransitionResult{Applied: true, Previous: prev, Current: b.Status()}, nil
}

func (m *memoryBookings) List(_ context.Context, f booking.ListFilter) ([]*booking.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*booking.Booking
	for _, b := range m.bookings {
		if f.Status == nil || b.Status() == *f.Status {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memoryBookings) CountByStatus(context.Context) (map[booking.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[booking.Status]int64)
	for _, b := range m.bookings {
		counts[b.Status()]++
	}
	return counts, nil
}

// memoryCoupons is an in-memory CouponRepository.
type memoryCoupons struct {
	mu      sync.Mutex
	coupons map[string]*coupon.Coupon
}

func newMemoryCoupons() *memoryCoupons {
	return &memoryCoupons{coupons: make(map[string]*coupon.Coupon)}
}

func (m *memoryCoupons) Save(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coupons[c.Code()]; ok {
		return domain.NewConflictError("coupon exists")
	}
	m.coupons[c.Code()] = c
	return nil
}

func (m *memoryCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, domain.NewNotFoundError("Coupon", code)
	}
	return c, nil
}

func (m *memoryCoupons) FindActive(_ context.Context, now time.Time) ([]*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*coupon.Coupon
	for _, c := range m.coupons {
		if c.IsValidAt(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryCoupons) redeem(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok || !c.IsValidAt(time.Now().UTC()) {
		return domain.NewBadRequestError("coupon " + code + " is no longer valid")
	}
	m.coupons[code] = coupon.Reconstitute(c.ID(), c.Code(), c.DiscountType(), c.DiscountValue(),
		c.MinAmount(), c.MaxDiscount(), c.MaxUses(), c.CurrentUses()+1,
		c.ValidFrom(), c.ValidUntil(), c.CreatedAt(), time.Now().UTC())
	return nil
}

func (m *memoryCoupons) release(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok || c.CurrentUses() == 0 {
		return
	}
	m.coupons[code] = coupon.Reconstitute(c.ID(), c.Code(), c.DiscountType(), c.DiscountValue(),
		c.MinAmount(), c.MaxDiscount(), c.MaxUses(), c.CurrentUses()-1,
		c.ValidFrom(), c.ValidUntil(), c.CreatedAt(), time.Now().UTC())
}

// stubProvider counts calls and fails the first N of them.
type stubProvider struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	last     adapter.SessionRequest
	// onCall runs inside every call, before it answers.
	onCall func()
}

func (p *stubProvider) CreateSession(_ context.Context, req adapter.SessionRequest) (adapter.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = req
	if p.onCall != nil {
		p.onCall()
	}
	if p.failures > 0 {
		p.failures--
		err := p.err
		if err == nil {
			err = errProviderDown
		}
		return adapter.Session{}, err
	}
	return adapter.Session{ID: "sess_1", URL: "https://komoju.test/sessions/sess_1"}, nil
}

// recordingPublisher keeps every event it is asked to publish.
type recordingPublisher struct {
	mu      sync.Mutex
	created []uuid.UUID
	changes []booking.StatusChange
	err     error
}

func (p *recordingPublisher) PublishBookingCreated(_ context.Context, b *booking.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, b.ID())
	return p.err
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, c booking.StatusChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}
