package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/nithinbasa/SmartGrid/internal/storage"
	"github.com/nithinbasa/SmartGrid/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ch      chan monitor.SensorReading
	history []monitor.SensorReading
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Start(context.Context) (<-chan monitor.SensorReading, error) {
	return s.ch, nil
}

func (s *fakeSource) History(_ context.Context, n int) ([]monitor.SensorReading, error) {
	if n < len(s.history) {
		return s.history[len(s.history)-n:], nil
	}
	return s.history, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeBroadcaster struct {
	mu       sync.Mutex
	readings []monitor.SensorReading
}

func (b *fakeBroadcaster) BroadcastReading(r monitor.SensorReading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readings = append(b.readings, r)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func at(sec int64, v, i, p float64) monitor.SensorReading {
	return monitor.SensorReading{Voltage: v, Current: i, Power: p, Timestamp: time.Unix(sec, 0)}
}

func newTestRunner(t *testing.T, src *fakeSource) (*Runner, *monitor.Engine, *storage.ReadingBuffer, *fakeBroadcaster) {
	t.Helper()
	log := logger.WithComponent("pipeline")

	engine, err := monitor.NewEngine(monitor.DefaultThresholds(),
		monitor.WithClock(fixedClock{now: time.Unix(1_700_000_000, 0)}),
		monitor.WithObserver(NewAlertMetrics(log)))
	require.NoError(t, err)

	collector, err := telemetry.NewService(telemetry.Config{}, log)
	require.NoError(t, err)

	buffer := storage.NewReadingBuffer(10)
	hub := &fakeBroadcaster{}
	return NewRunner(src, engine, buffer, collector, hub, log), engine, buffer, hub
}

func TestRunProcessesUntilFeedEnds(t *testing.T) {
	src := &fakeSource{ch: make(chan monitor.SensorReading, 4)}
	runner, engine, buffer, hub := newTestRunner(t, src)

	src.ch <- at(1, 170, 2, 500)
	src.ch <- at(2, 171, 2, 500)
	src.ch <- at(3, 230, 12, 1500)
	close(src.ch)

	err := runner.Run(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrSourceUnavailable))

	assert.Equal(t, 3, buffer.Len())
	assert.Len(t, hub.readings, 3)

	alerts := engine.Alerts(0)
	require.Len(t, alerts, 3, "second low-voltage reading is inside the cooldown")
	assert.Equal(t, monitor.VoltageLow, alerts[2].Kind)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{ch: make(chan monitor.SensorReading)}
	runner, _, _, _ := newTestRunner(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestHandleRejectsInvalidReading(t *testing.T) {
	src := &fakeSource{}
	runner, engine, buffer, hub := newTestRunner(t, src)

	res := runner.Handle(context.Background(), at(1, math.NaN(), 2, 500))

	assert.Empty(t, res.Alerts)
	assert.Equal(t, 0, buffer.Len())
	assert.Empty(t, hub.readings)
	assert.Empty(t, engine.Alerts(0))
}

func TestSeedUsesSourceHistory(t *testing.T) {
	src := &fakeSource{}
	for i := int64(0); i < 15; i++ {
		src.history = append(src.history, at(i, 220, 2, 500))
	}
	runner, engine, buffer, _ := newTestRunner(t, src)

	require.NoError(t, runner.Seed(context.Background(), 10))

	assert.Equal(t, 10, buffer.Len())
	latest, ok := buffer.Latest()
	require.True(t, ok)
	assert.Equal(t, time.Unix(14, 0), latest.Timestamp)
	assert.Empty(t, engine.Alerts(0), "seeded history is not evaluated")
}
