package models

import "time"

const (
	StatusChangedEventTopic    = "payments.status.changed"
	UserNotificationEventTopic = "notifications.user"
)

type StatusChangedEvent struct {
	CheckoutID    string    `json:"checkout_id"`
	State         string    `json:"state"`
	Message       string    `json:"message"`
	Reason        string    `json:"reason,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	TraceID       string    `json:"trace_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type UserNotificationEvent struct {
	CheckoutID string    `json:"checkout_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	PlaySound  bool      `json:"play_sound"`
	TraceID    string    `json:"trace_id"`
	SentAt     time.Time `json:"sent_at"`
}
