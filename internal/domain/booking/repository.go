package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransitionResult describes the outcome of a conditional status update.
type TransitionResult struct {
	// Applied is true when the row matched a source status and was updated.
	Applied bool
	// Previous is the status before the update when Applied, otherwise the
	// status observed when re-reading the row.
	Previous Status
	Current  Status
}

// StatusChange records a transition that was applied to a booking.
type StatusChange struct {
	BookingID uuid.UUID
	Trigger   Trigger
	From      Status
	To        Status
	At        time.Time
}

// Change describes an applied result as a StatusChange.
func (r TransitionResult) Change(id uuid.UUID, trigger Trigger) StatusChange {
	return StatusChange{BookingID: id, Trigger: trigger, From: r.Previous, To: r.Current, At: time.Now().UTC()}
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status *Status
	Page   int
	Limit  int
}

// BookingRepository defines the persistence contract for Booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by id. Returns a NotFound domain error when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindLatestByEmailAndAmount returns the most recently created booking matching both fields.
	FindLatestByEmailAndAmount(ctx context.Context, email string, amount int64) (*Booking, error)

	// Create inserts b unless another booking in a date-holding status overlaps
	// its stay, in which case it returns a Conflict domain error. When
	// couponCode is non-empty the coupon's use counter is incremented in the
	// same transaction.
	Create(ctx context.Context, b *Booking, couponCode string) error

	// CheckAvailability returns a Conflict domain error when a date-holding
	// booking other than b overlaps its stay.
	CheckAvailability(ctx context.Context, b *Booking) error

	// Transition sets the status to trigger.Target() only if the current status
	// is one of trigger.Sources(), as a single atomic statement. sessionID is
	// stored alongside when non-empty. When no row changes the booking is
	// re-read; absence yields a NotFound domain error.
	//
	// TriggerSessionCreated fails with a Conflict domain error when another
	// date-holding booking overlaps the stay. An applied TriggerExpired returns
	// the booking's coupon use.
	Transition(ctx context.Context, id uuid.UUID, trigger Trigger, sessionID string) (TransitionResult, error)

	// List returns bookings newest first with the total count for the filter.
	List(ctx context.Context, filter ListFilter) ([]*Booking, int64, error)

	// CountByStatus returns the number of bookings per status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
