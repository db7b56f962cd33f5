package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

const (
	observerTimeout = 2 * time.Second
	alertQueueSize  = 256
)

// alertWrite is either an alert to persist or, when done is set, a marker
// closed once everything queued before it has been written.
type alertWrite struct {
	alert monitor.Alert
	done  chan struct{}
}

type service struct {
	repo   Repository
	cfg    Config
	logger logger.Logger

	alerts    chan alertWrite
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// No-op implementation
type noopCollector struct{}

// NewService returns the sqlite-backed collector, or a no-op collector
// when telemetry is disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return newService(repo, cfg, log), nil
}

func newService(repo Repository, cfg Config, log logger.Logger) *service {
	s := &service{
		repo:    repo,
		cfg:     cfg,
		logger:  log,
		alerts:  make(chan alertWrite, alertQueueSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.runAlerts()
	return s
}

func (s *service) RecordReading(ctx context.Context, r monitor.SensorReading) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.StoreReading(r); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}
	return nil
}

func (s *service) RecordAlert(ctx context.Context, a monitor.Alert) error {
	if err := s.repo.StoreAlert(ctx, a); err != nil {
		return errors.New().Wrap(ErrRecordFailed, err)
	}
	return nil
}

func (s *service) Recent(ctx context.Context, n int) ([]monitor.SensorReading, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.repo.Readings(ctx, n)
}

// RecentAlerts waits for alerts already queued by the observer methods,
// then reads the store.
func (s *service) RecentAlerts(ctx context.Context, n int) ([]monitor.Alert, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.syncAlerts(ctx); err != nil {
		return nil, err
	}
	return s.repo.Alerts(ctx, n)
}

func (s *service) AlertAppended(a monitor.Alert) {
	s.enqueueAlert(a)
}

func (s *service) AlertAcknowledged(a monitor.Alert) {
	s.enqueueAlert(a)
}

func (s *service) enqueueAlert(a monitor.Alert) {
	select {
	case s.alerts <- alertWrite{alert: a}:
	default:
		s.logger.Warn().Str("alert_id", a.ID).Msg("Telemetry alert queue full, dropping alert")
	}
}

func (s *service) syncAlerts(ctx context.Context) error {
	errFactory := errors.New()
	done := make(chan struct{})

	select {
	case s.alerts <- alertWrite{done: done}:
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	}

	select {
	case <-done:
	case <-s.stopped:
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	}
	return nil
}

func (s *service) runAlerts() {
	defer close(s.stopped)

	for {
		select {
		case w := <-s.alerts:
			s.handleAlert(w)
		case <-s.stop:
			for {
				select {
				case w := <-s.alerts:
					s.handleAlert(w)
				default:
					return
				}
			}
		}
	}
}

func (s *service) handleAlert(w alertWrite) {
	if w.done != nil {
		close(w.done)
		return
	}
	s.persistAlert(w.alert)
}

func (s *service) persistAlert(a monitor.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()

	if err := s.RecordAlert(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("alert_id", a.ID).Msg("Failed to persist alert")
	}
}

// Close writes the queued alerts, then closes the store.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.stopped
		if err := s.repo.Close(); err != nil {
			s.closeErr = errors.New().Wrap(errors.ErrShutdownFailed, err)
		}
	})
	return s.closeErr
}

func (*noopCollector) RecordReading(context.Context, monitor.SensorReading) error { return nil }
func (*noopCollector) RecordAlert(context.Context, monitor.Alert) error           { return nil }
func (*noopCollector) AlertAppended(monitor.Alert)                                {}
func (*noopCollector) AlertAcknowledged(monitor.Alert)                            {}
func (*noopCollector) Close() error                                               { return nil }

func (*noopCollector) Recent(context.Context, int) ([]monitor.SensorReading, error) {
	return nil, nil
}

func (*noopCollector) RecentAlerts(context.Context, int) ([]monitor.Alert, error) {
	return nil, nil
}
