package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/scheduler"
)

func TestNextInterval_HealthyUsesBaseInterval(t *testing.T) {
	s := scheduler.New(scheduler.Config{BaseInterval: 3 * time.Second})

	delay, ok := s.NextInterval(models.StatePending, 0)

	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)
}

func TestNextInterval_BackoffIsNonDecreasingAndCapped(t *testing.T) {
	s := scheduler.New(scheduler.Config{
		BaseInterval:  3 * time.Second,
		BackoffFactor: 1.5,
		MaxInterval:   30 * time.Second,
	})

	prev := time.Duration(0)
	for failures := 0; failures <= 50; failures++ {
		delay, ok := s.NextInterval(models.StateProcessing, failures)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, prev, "failures=%d", failures)
		assert.LessOrEqual(t, delay, 30*time.Second, "failures=%d", failures)
		prev = delay
	}

	capped, _ := s.NextInterval(models.StateProcessing, 50)
	assert.Equal(t, 30*time.Second, capped)
}

func TestNextInterval_PaidUsesSettleInterval(t *testing.T) {
	s := scheduler.New(scheduler.Config{
		BaseInterval:   3 * time.Second,
		SettleInterval: 10 * time.Second,
	})

	delay, ok := s.NextInterval(models.StatePaid, 0)

	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, delay)
}

func TestNextInterval_OtherTerminalStatesStopPolling(t *testing.T) {
	s := scheduler.New(scheduler.Config{})

	for _, state := range []models.LifecycleState{models.StateFailed, models.StateExpired, models.StateCancelled} {
		_, ok := s.NextInterval(state, 0)
		assert.False(t, ok, "state %s must not schedule another poll", state)
	}
}

func TestNextInterval_DefaultsApplied(t *testing.T) {
	s := scheduler.New(scheduler.Config{})

	delay, ok := s.NextInterval(models.StatePending, 0)

	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)
	assert.Equal(t, 2, s.SettlePolls())
}
