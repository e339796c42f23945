package models

import (
	"fmt"
	"time"
)

type LifecycleState string

const (
	StatePending    LifecycleState = "PENDING"
	StateProcessing LifecycleState = "PROCESSING"
	StatePaid       LifecycleState = "PAID"
	StateFailed     LifecycleState = "FAILED"
	StateExpired    LifecycleState = "EXPIRED"
	StateCancelled  LifecycleState = "CANCELLED"
)

// StatusRecord is the persisted unit of tracking for a single checkout.
// Exactly one record exists per checkout id; it is created on the first poll
// (or recovered after a restart) and mutated only by the monitor that owns it.
type StatusRecord struct {
	CheckoutID          string         `json:"checkout_id" gorm:"primaryKey;column:checkout_id"`
	State               LifecycleState `json:"state"`
	Message             string         `json:"message"`
	Progress            int            `json:"progress"`
	Amount              float64        `json:"amount,omitempty"`
	Currency            string         `json:"currency,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	LastCheckedAt       time.Time      `json:"last_checked_at"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	PaidAt              *time.Time     `json:"paid_at,omitempty"`
	TraceID             string         `json:"trace_id"`
}

func (r *StatusRecord) Validate() error {
	if r.CheckoutID == "" {
		return fmt.Errorf("checkout ID is required")
	}
	if !r.State.IsValid() {
		return fmt.Errorf("invalid lifecycle state: %s", r.State)
	}
	if r.ConsecutiveFailures < 0 {
		return fmt.Errorf("consecutive failures must not be negative")
	}
	return nil
}

func (s LifecycleState) IsValid() bool {
	switch s {
	case StatePending, StateProcessing, StatePaid, StateFailed, StateExpired, StateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted from s.
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case StatePaid, StateFailed, StateExpired, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next respects the
// lifecycle graph. Pending and Processing may alternate freely; a terminal
// state only permits itself, so late or duplicate polls can never rewrite
// an already-resolved checkout.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	if s.IsTerminal() {
		return s == next
	}
	return next.IsValid()
}

// Progress returns a 0-100 display hint derived from the state.
func (s LifecycleState) Progress() int {
	switch s {
	case StatePending:
		return 20
	case StateProcessing:
		return 60
	case StatePaid, StateFailed, StateExpired, StateCancelled:
		return 100
	default:
		return 0
	}
}

func (s LifecycleState) String() string {
	return string(s)
}
