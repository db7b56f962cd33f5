package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/metrics"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

const (
	DefaultQueueSize = 256

	writeTimeout = 5 * time.Second
	drainTimeout = 3 * time.Second
)

// Sink is the remote store that receives mirrored events.
type Sink interface {
	PutAlert(ctx context.Context, a monitor.Alert) error
	AckAlert(ctx context.Context, id string) error
	PutLoads(ctx context.Context, c control.Change) error
	Close() error
}

type eventKind string

const (
	eventAlert eventKind = "alert"
	eventAck   eventKind = "ack"
	eventLoads eventKind = "loads"
)

type event struct {
	kind   eventKind
	alert  monitor.Alert
	change control.Change
}

// Mirror replicates alert and load-control events to a Sink without ever
// blocking the caller. A full queue drops the event and counts it.
type Mirror struct {
	sink    Sink
	logger  logger.Logger
	queue   chan event
	dropped atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func New(sink Sink, queueSize int, log logger.Logger) *Mirror {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Mirror{
		sink:   sink,
		logger: log,
		queue:  make(chan event, queueSize),
		cancel: cancel,
	}

	m.wg.Add(1)
	go m.run(ctx)

	return m
}

func (m *Mirror) AlertAppended(a monitor.Alert) {
	m.enqueue(event{kind: eventAlert, alert: a})
}

func (m *Mirror) AlertAcknowledged(a monitor.Alert) {
	m.enqueue(event{kind: eventAck, alert: a})
}

func (m *Mirror) LoadsChanged(c control.Change) {
	m.enqueue(event{kind: eventLoads, change: c})
}

// Dropped reports how many events were lost to a full queue.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// Close stops the worker after it drains what is already queued, then
// closes the sink.
func (m *Mirror) Close() error {
	var err error
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
		err = m.sink.Close()
	})
	return err
}

func (m *Mirror) enqueue(ev event) {
	select {
	case m.queue <- ev:
		metrics.MirrorQueueSize.Set(float64(len(m.queue)))
	default:
		m.dropped.Add(1)
		metrics.MirrorDropped.Inc()
		m.logger.Warn().
			Str("event", string(ev.kind)).
			Msg("Mirror queue full, dropping event")
	}
}

func (m *Mirror) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case ev := <-m.queue:
			m.write(ev)
		case <-ctx.Done():
			m.drain()
			return
		}
	}
}

func (m *Mirror) drain() {
	deadline := time.After(drainTimeout)
	for {
		select {
		case ev := <-m.queue:
			m.write(ev)
		case <-deadline:
			m.logger.Warn().Int("pending", len(m.queue)).Msg("Mirror drain timed out")
			return
		default:
			return
		}
	}
}

func (m *Mirror) write(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch ev.kind {
	case eventAlert:
		err = m.sink.PutAlert(ctx, ev.alert)
	case eventAck:
		err = m.sink.AckAlert(ctx, ev.alert.ID)
	case eventLoads:
		err = m.sink.PutLoads(ctx, ev.change)
	}
	metrics.MirrorQueueSize.Set(float64(len(m.queue)))

	if err != nil {
		metrics.MirrorEvents.WithLabelValues(string(ev.kind), "error").Inc()
		m.logger.Error().
			Err(err).
			Str("event", string(ev.kind)).
			Msg("Failed to mirror event")
		return
	}
	metrics.MirrorEvents.WithLabelValues(string(ev.kind), "ok").Inc()
}
