package source

import (
	"context"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/config"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

const (
	NameSimulated = "simulated"
	NameRemote    = "remote"

	readingBuffer = 16
)

// ReadingSource produces the live feed of sensor readings.
type ReadingSource interface {
	Name() string
	// Start begins producing readings. The channel is closed when ctx is
	// done or the feed ends.
	Start(ctx context.Context) (<-chan monitor.SensorReading, error)
	// History returns up to n past readings, oldest first.
	History(ctx context.Context, n int) ([]monitor.SensorReading, error)
	Close() error
}

// New picks the remote feed when one is configured, else the simulator.
func New(cfg *config.Config) (ReadingSource, error) {
	if cfg.UseRemote() {
		return NewRemoteSource(cfg.Remote, logger.WithComponent("source"))
	}
	return NewSimulatedSource(time.Duration(cfg.Interval)*time.Second, logger.WithComponent("source")), nil
}
