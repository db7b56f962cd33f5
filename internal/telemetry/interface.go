package telemetry

import (
	"context"

	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

// Collector persists the reading and alert history. It also observes the
// alert engine so appends and acknowledgements reach the store.
type Collector interface {
	monitor.Observer
	RecordReading(ctx context.Context, r monitor.SensorReading) error
	RecordAlert(ctx context.Context, a monitor.Alert) error
	// Recent returns up to n stored readings, oldest first.
	Recent(ctx context.Context, n int) ([]monitor.SensorReading, error)
	// RecentAlerts returns up to n stored alerts, newest first.
	RecentAlerts(ctx context.Context, n int) ([]monitor.Alert, error)
	Close() error
}

// Repository defines the interface for history storage
type Repository interface {
	StoreReading(r monitor.SensorReading) error
	StoreAlert(ctx context.Context, a monitor.Alert) error
	Readings(ctx context.Context, n int) ([]monitor.SensorReading, error)
	Alerts(ctx context.Context, n int) ([]monitor.Alert, error)
	Close() error
}
