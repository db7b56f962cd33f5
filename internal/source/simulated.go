package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

const (
	nominalVoltage = 220.0
	voltageSpread  = 20.0
	baseCurrent    = 2.0
	basePower      = 400.0
	powerSpread    = 200.0

	historySpacing = time.Minute
)

// SimulatedSource generates plausible readings for demo mode.
type SimulatedSource struct {
	interval time.Duration
	logger   logger.Logger
	now      func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

type SimulatedOption func(*SimulatedSource)

// WithSeed makes the generated values reproducible.
func WithSeed(seed int64) SimulatedOption {
	return func(s *SimulatedSource) {
		s.rnd = rand.New(rand.NewSource(seed))
	}
}

func WithNow(now func() time.Time) SimulatedOption {
	return func(s *SimulatedSource) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSimulatedSource(interval time.Duration, log logger.Logger, opts ...SimulatedOption) *SimulatedSource {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	s := &SimulatedSource{
		interval: interval,
		logger:   log,
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedSource) Name() string { return NameSimulated }

// Start emits one reading per interval until ctx is done.
func (s *SimulatedSource) Start(ctx context.Context) (<-chan monitor.SensorReading, error) {
	out := make(chan monitor.SensorReading, readingBuffer)

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting simulated reading source")

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- s.next(s.now()):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// History returns n readings one minute apart, ending now.
func (s *SimulatedSource) History(_ context.Context, n int) ([]monitor.SensorReading, error) {
	if n <= 0 {
		return nil, nil
	}

	now := s.now()
	history := make([]monitor.SensorReading, 0, n)
	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(n-1-i) * historySpacing)
		history = append(history, s.next(ts))
	}
	return history, nil
}

func (s *SimulatedSource) Close() error { return nil }

func (s *SimulatedSource) next(ts time.Time) monitor.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	return monitor.SensorReading{
		Voltage:   nominalVoltage + (s.rnd.Float64()-0.5)*voltageSpread,
		Current:   baseCurrent + s.rnd.Float64(),
		Power:     basePower + s.rnd.Float64()*powerSpread,
		Timestamp: ts,
	}
}
