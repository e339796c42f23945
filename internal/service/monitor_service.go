package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/models/dto"
	"github.com/xiongtingping/wenpai-sub001/internal/monitor"
	"github.com/xiongtingping/wenpai-sub001/internal/notify"
	"github.com/xiongtingping/wenpai-sub001/internal/recovery"
	"github.com/xiongtingping/wenpai-sub001/internal/scheduler"
)

// ErrUnknownCheckout is returned for operations on a checkout no monitor is
// tracking.
var ErrUnknownCheckout = errors.New("checkout is not being monitored")

// StatusStore is the full durable store contract.
type StatusStore interface {
	Get(ctx context.Context, checkoutID string) (*models.StatusRecord, error)
	Set(ctx context.Context, record *models.StatusRecord) error
	Remove(ctx context.Context, checkoutID string) error
	ListActive(ctx context.Context) ([]models.StatusRecord, error)
}

// Publisher defines the interface for publishing events to Kafka topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, message interface{}) error
}

// MonitorService orchestrates payment-status monitoring: it creates and
// tracks monitors, recovers in-flight checkouts after a restart, and turns
// lifecycle transitions into published events.
type MonitorService struct {
	Store           StatusStore
	Gateway         monitor.Gateway
	Notifier        notify.Notifier
	Publisher       Publisher
	Registry        *monitor.Registry
	Coordinator     *recovery.Coordinator
	SchedulerConfig scheduler.Config
	Defaults        monitor.Config
}

func NewMonitorService(
	store StatusStore,
	gw monitor.Gateway,
	notifier notify.Notifier,
	publisher Publisher,
	coordinator *recovery.Coordinator,
	schedCfg scheduler.Config,
	defaults monitor.Config,
) *MonitorService {
	return &MonitorService{
		Store:           store,
		Gateway:         gw,
		Notifier:        notifier,
		Publisher:       publisher,
		Registry:        monitor.NewRegistry(),
		Coordinator:     coordinator,
		SchedulerConfig: schedCfg,
		Defaults:        defaults,
	}
}

// StartMonitor begins tracking a checkout. If a record for the checkout is
// already persisted (a recovered in-flight payment), the new monitor
// inherits its timestamps and failure count. Starting an already-tracked
// checkout fails with monitor.ErrAlreadyTracked.
func (s *MonitorService) StartMonitor(ctx context.Context, req *dto.StartMonitor) (models.StatusRecord, error) {
	req.Sanitize()
	if req.CheckoutID == "" {
		return models.StatusRecord{}, fmt.Errorf("checkout ID is required")
	}

	cfg := s.Defaults
	if req.AutoRefresh != nil {
		cfg.AutoRefresh = *req.AutoRefresh
	}
	if req.MaxRetries > 0 {
		cfg.MaxRetries = req.MaxRetries
	}
	if req.EnableNotifications != nil {
		cfg.EnableNotifications = *req.EnableNotifications
	}
	if req.EnableSound != nil {
		cfg.EnableSound = *req.EnableSound
	}

	schedCfg := s.SchedulerConfig
	if req.RefreshIntervalMs > 0 {
		schedCfg.BaseInterval = time.Duration(req.RefreshIntervalMs) * time.Millisecond
	}

	m := monitor.New(req.CheckoutID, monitor.Deps{
		Gateway:   s.Gateway,
		Store:     s.Store,
		Notifier:  s.Notifier,
		Scheduler: scheduler.New(schedCfg),
	}, cfg, s.buildEvents())

	if err := s.Registry.Add(m); err != nil {
		return models.StatusRecord{}, err
	}

	// Monitors outlive the request that created them; the loop runs on its
	// own context and is torn down through Stop / Registry.StopAll.
	if err := m.Start(context.Background()); err != nil {
		s.Registry.Remove(req.CheckoutID)
		return models.StatusRecord{}, err
	}

	go s.reapWhenDone(m)

	return m.Record(), nil
}

// RefreshNow triggers an immediate out-of-band poll for a tracked checkout.
func (s *MonitorService) RefreshNow(checkoutID string) error {
	m, ok := s.Registry.Get(checkoutID)
	if !ok {
		return ErrUnknownCheckout
	}
	return m.RefreshNow()
}

// Pause suspends polling for a tracked checkout.
func (s *MonitorService) Pause(checkoutID string) error {
	m, ok := s.Registry.Get(checkoutID)
	if !ok {
		return ErrUnknownCheckout
	}
	return m.Pause()
}

// Resume restarts polling for a paused checkout.
func (s *MonitorService) Resume(checkoutID string) error {
	m, ok := s.Registry.Get(checkoutID)
	if !ok {
		return ErrUnknownCheckout
	}
	return m.Resume()
}

// StopMonitor terminates the poll loop without deleting the record.
func (s *MonitorService) StopMonitor(checkoutID string) error {
	m, ok := s.Registry.Get(checkoutID)
	if !ok {
		return ErrUnknownCheckout
	}
	m.Stop()
	return nil
}

// Discard stops tracking a checkout and removes its persisted record, e.g.
// when the user dismisses it.
func (s *MonitorService) Discard(ctx context.Context, checkoutID string) error {
	s.Registry.Remove(checkoutID)
	return s.Store.Remove(ctx, checkoutID)
}

// GetRecord returns the current view of a checkout: the live monitor's
// record when one exists, otherwise the persisted one.
func (s *MonitorService) GetRecord(ctx context.Context, checkoutID string) (models.StatusRecord, error) {
	if m, ok := s.Registry.Get(checkoutID); ok {
		return m.Record(), nil
	}
	record, err := s.Store.Get(ctx, checkoutID)
	if err != nil {
		return models.StatusRecord{}, err
	}
	if record == nil {
		return models.StatusRecord{}, ErrUnknownCheckout
	}
	return *record, nil
}

// RecoverActive lists the in-flight checkouts persisted before a restart.
func (s *MonitorService) RecoverActive(ctx context.Context) ([]recovery.Resumable, error) {
	return s.Coordinator.Recover(ctx)
}

// ResumeAll starts a monitor for every recovered checkout. Checkouts that
// are already tracked are skipped.
func (s *MonitorService) ResumeAll(ctx context.Context) ([]models.StatusRecord, error) {
	resumables, err := s.Coordinator.Recover(ctx)
	if err != nil {
		return nil, err
	}

	resumed := make([]models.StatusRecord, 0, len(resumables))
	for _, r := range resumables {
		record, err := s.StartMonitor(ctx, &dto.StartMonitor{CheckoutID: r.Record.CheckoutID})
		if errors.Is(err, monitor.ErrAlreadyTracked) {
			continue
		}
		if err != nil {
			return resumed, fmt.Errorf("error resuming checkout %s: %w", r.Record.CheckoutID, err)
		}
		resumed = append(resumed, record)
	}
	return resumed, nil
}

// CheckAllActive polls every active record once and returns the results.
func (s *MonitorService) CheckAllActive(ctx context.Context) (map[string]recovery.CheckResult, error) {
	return s.Coordinator.CheckAll(ctx)
}

// HandleCheckoutCreated starts monitoring for a checkout announced on the
// event bus. Duplicate announcements are idempotent.
func (s *MonitorService) HandleCheckoutCreated(ctx context.Context, event models.CheckoutCreatedEvent) error {
	_, err := s.StartMonitor(ctx, &dto.StartMonitor{CheckoutID: event.CheckoutID})
	if errors.Is(err, monitor.ErrAlreadyTracked) {
		logrus.Infof("checkout %s already monitored, ignoring duplicate event", event.CheckoutID)
		return nil
	}
	return err
}

func (s *MonitorService) buildEvents() monitor.Events {
	return monitor.Events{
		OnProcessing: func(record models.StatusRecord) {
			s.publishTransition(record, "")
		},
		OnPaid: func(record models.StatusRecord) {
			s.publishTransition(record, "")
		},
		OnFailed: func(record models.StatusRecord, reason string) {
			s.publishTransition(record, reason)
		},
		OnExpired: func(record models.StatusRecord) {
			s.publishTransition(record, "")
		},
	}
}

func (s *MonitorService) publishTransition(record models.StatusRecord, reason string) {
	if s.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	event := models.StatusChangedEvent{
		CheckoutID: record.CheckoutID,
		State:      string(record.State),
		Message:    record.Message,
		Reason:     reason,
		Amount:     record.Amount,
		Currency:   record.Currency,
		TraceID:    record.TraceID,
		OccurredAt: record.LastCheckedAt,
	}
	if err := s.Publisher.Publish(ctx, models.StatusChangedEventTopic, event); err != nil {
		logrus.Errorf("error publishing status change for checkout %s: %s", record.CheckoutID, err.Error())
	}
}

// reapWhenDone removes the persisted record once its monitor has finished
// on a terminal state and the transition has been delivered. Records for
// stopped-but-unresolved checkouts stay, so they can be recovered later.
func (s *MonitorService) reapWhenDone(m *monitor.Monitor) {
	<-m.Done()

	record := m.Record()
	if !record.State.IsTerminal() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Store.Remove(ctx, record.CheckoutID); err != nil {
		logrus.Warnf("error removing resolved checkout %s from store: %s", record.CheckoutID, err.Error())
	}
}
