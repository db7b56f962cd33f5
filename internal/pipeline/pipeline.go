package pipeline

import (
	"context"

	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/metrics"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/nithinbasa/SmartGrid/internal/source"
	"github.com/nithinbasa/SmartGrid/internal/storage"
	"github.com/nithinbasa/SmartGrid/internal/telemetry"
)

// Broadcaster pushes live readings to dashboard clients.
type Broadcaster interface {
	BroadcastReading(r monitor.SensorReading)
}

// Runner feeds every reading from the source through the alert engine.
type Runner struct {
	source    source.ReadingSource
	engine    *monitor.Engine
	buffer    *storage.ReadingBuffer
	telemetry telemetry.Collector
	broadcast Broadcaster
	logger    logger.Logger
}

func NewRunner(
	src source.ReadingSource,
	engine *monitor.Engine,
	buffer *storage.ReadingBuffer,
	collector telemetry.Collector,
	broadcast Broadcaster,
	log logger.Logger,
) *Runner {
	return &Runner{
		source:    src,
		engine:    engine,
		buffer:    buffer,
		telemetry: collector,
		broadcast: broadcast,
		logger:    log,
	}
}

// Seed fills the buffer with past readings so the chart is not empty at
// startup. Seeded readings are not evaluated. When the source has no
// history, the local telemetry store is used.
func (r *Runner) Seed(ctx context.Context, n int) error {
	history, err := r.source.History(ctx, n)
	if err != nil {
		return errors.New().Wrap(errors.ErrSourceUnavailable, err)
	}

	if len(history) == 0 {
		stored, err := r.telemetry.Recent(ctx, n)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to load stored history")
		}
		history = stored
	}

	r.buffer.Seed(history)
	r.logger.Info().
		Int("readings", len(history)).
		Str("source", r.source.Name()).
		Msg("Seeded reading history")

	return nil
}

// Run consumes the source until the channel closes or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	errFactory := errors.New()

	readings, err := r.source.Start(ctx)
	if err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case reading, ok := <-readings:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errFactory.WithMessage(errors.ErrSourceUnavailable, "reading feed ended")
			}
			r.Handle(ctx, reading)
		}
	}
}

// Handle processes a single reading.
func (r *Runner) Handle(ctx context.Context, reading monitor.SensorReading) monitor.Result {
	name := r.source.Name()

	if err := reading.Validate(); err != nil {
		metrics.ReadingsRejected.WithLabelValues(name).Inc()
		r.logger.Warn().Err(err).Msg("Rejected reading")
		return monitor.Result{Reading: reading}
	}

	r.buffer.Add(reading)
	if err := r.telemetry.RecordReading(ctx, reading); err != nil {
		r.logger.Error().Err(err).Msg("Failed to record reading")
	}

	result := r.engine.Process(reading)

	metrics.ReadingsProcessed.WithLabelValues(name).Inc()
	metrics.LastVoltage.Set(reading.Voltage)
	metrics.LastCurrent.Set(reading.Current)
	metrics.LastPower.Set(reading.Power)
	for _, kind := range result.Suppressed() {
		metrics.AlertsSuppressed.WithLabelValues(string(kind)).Inc()
	}

	r.broadcast.BroadcastReading(reading)

	if len(result.Alerts) > 0 {
		r.logger.Debug().
			Int("alerts", len(result.Alerts)).
			Float64("voltage", reading.Voltage).
			Float64("current", reading.Current).
			Float64("power", reading.Power).
			Msg("Reading raised alerts")
	}

	return result
}
