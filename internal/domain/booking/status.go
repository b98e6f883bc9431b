package booking

import "fmt"

// Status is the lifecycle state of a booking.
type Status int

const (
	StatusPending Status = iota + 1
	StatusProcessing
	StatusWaiting
	StatusPaid
	StatusCancelled
)

// String returns the persisted representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusWaiting:
		return "waiting"
	case StatusPaid:
		return "paid"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus converts a persisted status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "processing":
		return StatusProcessing, nil
	case "waiting":
		return StatusWaiting, nil
	case "paid":
		return StatusPaid, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("unknown booking status %q", s)
	}
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusWaiting, StatusPaid, StatusCancelled}
}

// IsTerminal reports whether no trigger can move a booking out of s.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanPay reports whether a payment session may be created for a booking in s.
func (s Status) CanPay() bool {
	return s == StatusPending
}

// HoldsDates reports whether a booking in s blocks its date range for other guests.
func (s Status) HoldsDates() bool {
	return s == StatusProcessing || s == StatusWaiting || s == StatusPaid
}

// CanTransitionTo reports whether some trigger moves a booking from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range AllTriggers() {
		if t.Target() == target && t.Accepts(s) {
			return true
		}
	}
	return false
}

// Trigger is an event that drives a status transition.
type Trigger int

const (
	TriggerSessionCreated Trigger = iota + 1
	TriggerAuthorized
	TriggerCaptured
	TriggerExpired
)

// AllTriggers lists every trigger.
func AllTriggers() []Trigger {
	return []Trigger{TriggerSessionCreated, TriggerAuthorized, TriggerCaptured, TriggerExpired}
}

func (t Trigger) String() string {
	switch t {
	case TriggerSessionCreated:
		return "session_created"
	case TriggerAuthorized:
		return "authorized"
	case TriggerCaptured:
		return "captured"
	case TriggerExpired:
		return "expired"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// Sources returns the statuses from which t may fire. A booking in processing
// has a session open but no provider event yet, so provider events treat it
// like pending.
func (t Trigger) Sources() []Status {
	switch t {
	case TriggerSessionCreated:
		return []Status{StatusPending}
	case TriggerAuthorized:
		return []Status{StatusPending, StatusProcessing}
	case TriggerCaptured:
		return []Status{StatusPending, StatusProcessing, StatusWaiting}
	case TriggerExpired:
		return []Status{StatusPending, StatusProcessing, StatusWaiting}
	default:
		return nil
	}
}

// Target returns the status a booking ends in after t fires.
func (t Trigger) Target() Status {
	switch t {
	case TriggerSessionCreated:
		return StatusProcessing
	case TriggerAuthorized:
		return StatusWaiting
	case TriggerCaptured:
		return StatusPaid
	case TriggerExpired:
		return StatusCancelled
	default:
		return 0
	}
}

// Accepts reports whether s is a valid source for t.
func (t Trigger) Accepts(s Status) bool {
	for _, src := range t.Sources() {
		if src == s {
			return true
		}
	}
	return false
}

// SourceStrings returns Sources in persisted form, for conditional updates.
func (t Trigger) SourceStrings() []string {
	sources := t.Sources()
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.String()
	}
	return out
}

// NextStep tells a client what to do with a booking in s.
type NextStep string

const (
	NextStepPay       NextStep = "pay"
	NextStepWait      NextStep = "wait"
	NextStepCompleted NextStep = "completed"
	NextStepExpired   NextStep = "expired"
)

// NextStep maps s to the client action: pay while pending, wait while a
// session or authorization is open, and go to the result page once terminal.
func (s Status) NextStep() NextStep {
	switch s {
	case StatusPending:
		return NextStepPay
	case StatusProcessing, StatusWaiting:
		return NextStepWait
	case StatusPaid:
		return NextStepCompleted
	case StatusCancelled:
		return NextStepExpired
	default:
		return NextStepWait
	}
}
