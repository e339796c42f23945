package dto

import "strings"

// StartMonitor is the request body for tracking a new checkout.
type StartMonitor struct {
	CheckoutID          string `json:"checkout_id"`
	AutoRefresh         *bool  `json:"auto_refresh,omitempty"`
	RefreshIntervalMs   int    `json:"refresh_interval_ms,omitempty"`
	MaxRetries          int    `json:"max_retries,omitempty"`
	EnableNotifications *bool  `json:"enable_notifications,omitempty"`
	EnableSound         *bool  `json:"enable_sound,omitempty"`
}

func (s *StartMonitor) Sanitize() {
	s.CheckoutID = strings.TrimSpace(s.CheckoutID)
}
