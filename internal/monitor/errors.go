package monitor

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice on a monitor.
	ErrAlreadyStarted = errors.New("monitor already started")
	// ErrNotRunning is returned for operations on a monitor that has stopped
	// or was never started.
	ErrNotRunning = errors.New("monitor is not running")
	// ErrPaused rejects out-of-band refreshes while the poll loop is paused.
	ErrPaused = errors.New("monitor is paused")
	// ErrAlreadyTracked is returned when a second monitor is registered for
	// the same checkout id.
	ErrAlreadyTracked = errors.New("checkout is already being monitored")
)
