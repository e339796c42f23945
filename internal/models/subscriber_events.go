package models

import "time"

const (
	CheckoutCreatedTopic2Subscribe string = "checkouts.created"
)

// CheckoutCreatedEvent announces a checkout freshly created at the payment
// gateway; receiving one starts a monitor for it.
type CheckoutCreatedEvent struct {
	CheckoutID string    `json:"checkout_id"`
	Amount     float64   `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
