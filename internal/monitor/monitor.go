package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xiongtingping/wenpai-sub001/internal/classifier"
	"github.com/xiongtingping/wenpai-sub001/internal/gateway"
	"github.com/xiongtingping/wenpai-sub001/internal/metrics"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/notify"
	"github.com/xiongtingping/wenpai-sub001/internal/scheduler"
)

// Gateway fetches the remote status of a checkout.
type Gateway interface {
	FetchStatus(ctx context.Context, checkoutID string) (*gateway.CheckoutStatus, error)
}

// Store persists status records. A nil record from Get means "not tracked
// yet" and is not an error.
type Store interface {
	Get(ctx context.Context, checkoutID string) (*models.StatusRecord, error)
	Set(ctx context.Context, record *models.StatusRecord) error
}

// Events are the business-outcome callbacks. Each fires exactly once per
// observed transition into its state; a nil callback is skipped. Cancelled
// checkouts are delivered through OnFailed with a "payment cancelled" reason.
type Events struct {
	OnProcessing func(record models.StatusRecord)
	OnPaid       func(record models.StatusRecord)
	OnFailed     func(record models.StatusRecord, reason string)
	OnExpired    func(record models.StatusRecord)
}

// Config carries the per-monitor feature flags.
type Config struct {
	// AutoRefresh enables the scheduled poll loop. When false the monitor
	// only polls on explicit RefreshNow calls.
	AutoRefresh bool
	// MaxRetries is the consecutive-failure count past which the record is
	// presented as degraded. Zero disables the degraded presentation; the
	// monitor keeps retrying either way.
	MaxRetries int
	// EnableNotifications gates user notifications on terminal transitions.
	EnableNotifications bool
	// EnableSound marks notifications as audible.
	EnableSound bool
	// CallTimeout bounds each gateway call. It is clamped below the base
	// poll interval so a slow gateway cannot stall the loop.
	CallTimeout time.Duration
}

// Deps are the collaborators a monitor drives.
type Deps struct {
	Gateway   Gateway
	Store     Store
	Notifier  notify.Notifier
	Scheduler *scheduler.Scheduler
	Clock     Clock
}

type runState int

const (
	stateCreated runState = iota
	stateRunning
	statePaused
	stateStopped
)

// Monitor owns the poll loop for one checkout. Polls are strictly
// sequential: the loop is a single goroutine and a new poll is never issued
// while a previous one is outstanding. A stopped monitor never writes to
// the store and never fires an event, even if a remote call was in flight
// when Stop was called.
type Monitor struct {
	checkoutID string
	gateway    Gateway
	store      Store
	notifier   notify.Notifier
	sched      *scheduler.Scheduler
	clock      Clock
	cfg        Config
	events     Events
	log        *logrus.Entry

	refreshCh chan chan error
	pauseCh   chan struct{}
	resumeCh  chan struct{}
	done      chan struct{}

	// settleLeft bounds the confirmatory polls after Paid; loop-goroutine only.
	settleLeft int

	mu       sync.Mutex
	status   runState
	cancel   context.CancelFunc
	record   *models.StatusRecord
	degraded bool
}

func New(checkoutID string, deps Deps, cfg Config, events Events) *Monitor {
	if deps.Scheduler == nil {
		deps.Scheduler = scheduler.New(scheduler.Config{})
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}
	if cfg.CallTimeout <= 0 || cfg.CallTimeout >= deps.Scheduler.BaseInterval() {
		cfg.CallTimeout = deps.Scheduler.BaseInterval() * 2 / 3
	}

	return &Monitor{
		checkoutID: checkoutID,
		gateway:    deps.Gateway,
		store:      deps.Store,
		notifier:   deps.Notifier,
		sched:      deps.Scheduler,
		clock:      deps.Clock,
		cfg:        cfg,
		events:     events,
		log:        logrus.WithField("checkout_id", checkoutID),
		refreshCh:  make(chan chan error),
		pauseCh:    make(chan struct{}, 1),
		resumeCh:   make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start loads or creates the status record and launches the poll loop. The
// first poll happens immediately, so a checkout the gateway resolved while
// we were away fires its terminal event on the very first cycle.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status != stateCreated {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.status = stateRunning
	m.mu.Unlock()

	record, err := m.store.Get(ctx, m.checkoutID)
	if err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("get").Inc()
		m.log.Warnf("could not read persisted record, starting fresh without durability: %s", err.Error())
		m.setDegraded(true)
	}
	if record == nil {
		now := m.clock.Now()
		record = &models.StatusRecord{
			CheckoutID:    m.checkoutID,
			State:         models.StatePending,
			Message:       classifier.Describe(models.StatePending),
			Progress:      models.StatePending.Progress(),
			CreatedAt:     now,
			LastCheckedAt: now,
			TraceID:       uuid.New().String(),
		}
		m.persist(ctx, record)
	} else if record.TraceID == "" {
		record.TraceID = uuid.New().String()
	}

	m.mu.Lock()
	m.record = record
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	metrics.ActiveMonitors.Inc()
	go m.run(runCtx)
	return nil
}

// RefreshNow triggers an out-of-band immediate poll. It does not reset the
// backoff sequence and is rejected while the monitor is paused. The call
// returns once the loop has accepted the refresh.
func (m *Monitor) RefreshNow() error {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	switch status {
	case statePaused:
		return ErrPaused
	case stateCreated, stateStopped:
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case m.refreshCh <- reply:
	case <-m.done:
		return ErrNotRunning
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrNotRunning
	}
}

// Pause suspends scheduling without losing the persisted record. An
// in-flight poll is allowed to finish; no new poll starts until Resume.
func (m *Monitor) Pause() error {
	m.mu.Lock()
	switch m.status {
	case statePaused:
		m.mu.Unlock()
		return nil
	case stateRunning:
		m.status = statePaused
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		return ErrNotRunning
	}

	select {
	case m.pauseCh <- struct{}{}:
	default:
	}
	m.log.Info("monitor paused")
	return nil
}

// Resume restarts the poll loop; the next poll happens immediately.
func (m *Monitor) Resume() error {
	m.mu.Lock()
	switch m.status {
	case stateRunning:
		m.mu.Unlock()
		return nil
	case statePaused:
		m.status = stateRunning
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		return ErrNotRunning
	}

	select {
	case m.resumeCh <- struct{}{}:
	default:
	}
	m.log.Info("monitor resumed")
	return nil
}

// Stop terminates the loop and cancels any pending timer. The persisted
// record is left in place.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.status == stateStopped {
		m.mu.Unlock()
		return
	}
	m.status = stateStopped
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed when the poll loop has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Finished reports whether the poll loop has exited.
func (m *Monitor) Finished() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Monitor) CheckoutID() string {
	return m.checkoutID
}

// Record returns a copy of the current status record.
func (m *Monitor) Record() models.StatusRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return models.StatusRecord{CheckoutID: m.checkoutID, State: models.StatePending}
	}
	return *m.record
}

// DegradedDurability reports whether the latest persistence attempt failed.
// The monitor keeps operating in memory but cannot guarantee recovery after
// a restart while this is true.
func (m *Monitor) DegradedDurability() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer metrics.ActiveMonitors.Dec()
	defer m.markStopped()

	for {
		delay, again := m.pollOnce(ctx)
		if !again || ctx.Err() != nil {
			return
		}
		if err := m.wait(ctx, delay); err != nil {
			return
		}
	}
}

// pollOnce runs one poll cycle and returns the delay before the next one,
// or again=false when monitoring is finished for this checkout.
func (m *Monitor) pollOnce(ctx context.Context) (delay time.Duration, again bool) {
	record := m.Record()

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	start := time.Now()
	remote, err := m.gateway.FetchStatus(callCtx, m.checkoutID)
	cancel()
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		// stopped while the call was in flight; discard the result
		return 0, false
	}

	now := m.clock.Now()
	record.LastCheckedAt = now

	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		record.ConsecutiveFailures++
		if m.cfg.MaxRetries > 0 && record.ConsecutiveFailures > m.cfg.MaxRetries {
			record.Message = "status unknown, retrying"
		}
		m.log.Warnf("status poll failed (%d consecutive): %s", record.ConsecutiveFailures, err.Error())
		m.persist(ctx, &record)
		m.setRecord(record)

		next, _ := m.sched.NextInterval(record.State, record.ConsecutiveFailures)
		return next, true
	}

	metrics.PollsTotal.WithLabelValues("success").Inc()

	prev := record.State
	classified := classifier.Classify(remote.Status)
	if !prev.CanTransitionTo(classified) {
		m.log.Warnf("ignoring gateway status %q: checkout already %s", remote.Status, prev)
		classified = prev
	}

	record.State = classified
	record.Message = classifier.Describe(classified)
	if remote.Message != "" {
		record.Message = remote.Message
	}
	record.Progress = classified.Progress()
	record.ConsecutiveFailures = 0
	if record.Amount == 0 && remote.Amount > 0 {
		record.Amount = remote.Amount
		record.Currency = remote.Currency
	}
	if classified == models.StatePaid && record.PaidAt == nil {
		paidAt := now
		record.PaidAt = &paidAt
	}

	m.persist(ctx, &record)
	m.setRecord(record)

	if classified != prev {
		metrics.StatusTransitionsTotal.WithLabelValues(string(classified)).Inc()
		if classified == models.StatePaid {
			m.settleLeft = m.sched.SettlePolls()
		}
		m.fireTransition(ctx, record)
	}

	next, cont := m.sched.NextInterval(classified, 0)
	if !cont {
		return 0, false
	}
	if classified == models.StatePaid {
		if m.settleLeft <= 0 {
			return 0, false
		}
		m.settleLeft--
	}
	return next, true
}

func (m *Monitor) fireTransition(ctx context.Context, record models.StatusRecord) {
	switch record.State {
	case models.StateProcessing:
		if m.events.OnProcessing != nil {
			m.events.OnProcessing(record)
		}
	case models.StatePaid:
		if m.events.OnPaid != nil {
			m.events.OnPaid(record)
		}
		m.notifyUser(ctx, record, "Payment received", "Your payment was completed successfully")
	case models.StateFailed:
		if m.events.OnFailed != nil {
			m.events.OnFailed(record, record.Message)
		}
		m.notifyUser(ctx, record, "Payment failed", record.Message)
	case models.StateExpired:
		if m.events.OnExpired != nil {
			m.events.OnExpired(record)
		}
		m.notifyUser(ctx, record, "Payment expired", "The payment window has expired")
	case models.StateCancelled:
		if m.events.OnFailed != nil {
			m.events.OnFailed(record, "payment cancelled")
		}
		m.notifyUser(ctx, record, "Payment cancelled", "The payment was cancelled")
	}
}

func (m *Monitor) notifyUser(ctx context.Context, record models.StatusRecord, title, body string) {
	if !m.cfg.EnableNotifications {
		return
	}
	m.notifier.Notify(ctx, notify.Notification{
		CheckoutID: record.CheckoutID,
		Title:      title,
		Body:       body,
		PlaySound:  m.cfg.EnableSound,
		TraceID:    record.TraceID,
	})
}

func (m *Monitor) wait(ctx context.Context, delay time.Duration) error {
	var timerC <-chan time.Time
	if m.cfg.AutoRefresh {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		if m.isPaused() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.resumeCh:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timerC:
			if m.isPaused() {
				continue
			}
			return nil
		case reply := <-m.refreshCh:
			reply <- nil
			return nil
		case <-m.pauseCh:
			// re-check the paused flag at the top of the loop
		}
	}
}

func (m *Monitor) persist(ctx context.Context, record *models.StatusRecord) {
	if err := m.store.Set(ctx, record); err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("set").Inc()
		m.log.Warnf("status record not persisted, recovery after restart not guaranteed: %s", err.Error())
		m.setDegraded(true)
		return
	}
	m.setDegraded(false)
}

func (m *Monitor) setRecord(record models.StatusRecord) {
	m.mu.Lock()
	m.record = &record
	m.mu.Unlock()
}

func (m *Monitor) setDegraded(v bool) {
	m.mu.Lock()
	m.degraded = v
	m.mu.Unlock()
}

func (m *Monitor) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == statePaused
}

func (m *Monitor) markStopped() {
	m.mu.Lock()
	m.status = stateStopped
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
