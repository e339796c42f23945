package scheduler

import (
	"math"
	"time"

	"github.com/xiongtingping/wenpai-sub001/internal/models"
)

const (
	defaultBaseInterval   = 3 * time.Second
	defaultBackoffFactor  = 1.5
	defaultMaxInterval    = 30 * time.Second
	defaultSettleInterval = 10 * time.Second
	defaultSettlePolls    = 2
)

// Config defines the polling cadence.
type Config struct {
	// BaseInterval is the delay between polls while healthy.
	BaseInterval time.Duration
	// BackoffFactor multiplies the interval per consecutive failure.
	BackoffFactor float64
	// MaxInterval caps the backed-off interval.
	MaxInterval time.Duration
	// SettleInterval is used for confirmatory polls after Paid.
	SettleInterval time.Duration
	// SettlePolls bounds how many confirmatory polls run after Paid.
	SettlePolls int
}

func (c Config) withDefaults() Config {
	if c.BaseInterval <= 0 {
		c.BaseInterval = defaultBaseInterval
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = defaultBackoffFactor
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultMaxInterval
	}
	if c.SettleInterval <= 0 {
		c.SettleInterval = defaultSettleInterval
	}
	if c.SettlePolls <= 0 {
		c.SettlePolls = defaultSettlePolls
	}
	return c
}

// Scheduler decides when the next status poll should happen. It is a pure
// calculation over (state, consecutiveFailures); it holds no timers itself.
type Scheduler struct {
	cfg Config
}

func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg.withDefaults()}
}

// NextInterval returns the delay before the next poll for the given state
// and consecutive remote-call failure count. The second return value is
// false when monitoring should stop: Failed, Expired and Cancelled are
// final, so no further poll is ever scheduled for them. Paid returns the
// settle interval; the monitor bounds the number of settle polls via
// SettlePolls.
func (s *Scheduler) NextInterval(state models.LifecycleState, consecutiveFailures int) (time.Duration, bool) {
	switch state {
	case models.StateFailed, models.StateExpired, models.StateCancelled:
		return 0, false
	case models.StatePaid:
		return s.cfg.SettleInterval, true
	}

	if consecutiveFailures <= 0 {
		return s.cfg.BaseInterval, true
	}

	delay := time.Duration(float64(s.cfg.BaseInterval) * math.Pow(s.cfg.BackoffFactor, float64(consecutiveFailures)))
	if delay > s.cfg.MaxInterval || delay <= 0 {
		delay = s.cfg.MaxInterval
	}
	return delay, true
}

// SettlePolls returns the bounded number of confirmatory polls after Paid.
func (s *Scheduler) SettlePolls() int {
	return s.cfg.SettlePolls
}

// BaseInterval exposes the healthy-poll delay, used to bound the remote
// call timeout below the minimum poll interval.
func (s *Scheduler) BaseInterval() time.Duration {
	return s.cfg.BaseInterval
}
