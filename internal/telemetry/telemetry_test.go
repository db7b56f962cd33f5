package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		DBPath:    filepath.Join(dir, "telemetry.db"),
		BackupDir: filepath.Join(dir, "backups"),
		BatchSize: 5,
		Enabled:   true,
	}
}

func newTestService(t *testing.T) Collector {
	t.Helper()
	svc, err := NewService(testConfig(t), logger.WithComponent("telemetry"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func reading(sec int64, v float64) monitor.SensorReading {
	return monitor.SensorReading{Voltage: v, Current: 2.5, Power: 510, Timestamp: time.Unix(sec, 0)}
}

func TestDisabledReturnsNoop(t *testing.T) {
	svc, err := NewService(Config{}, logger.WithComponent("telemetry"))
	require.NoError(t, err)

	assert.IsType(t, &noopCollector{}, svc)
	assert.NoError(t, svc.RecordReading(context.Background(), reading(1, 230)))
	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestEnabledRequiresPath(t *testing.T) {
	_, err := NewService(Config{Enabled: true}, logger.WithComponent("telemetry"))
	assert.Error(t, err)
}

func TestRecentSeesBufferedReadings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// fewer than a batch, so nothing has been flushed yet
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, svc.RecordReading(ctx, reading(i, 220+float64(i))))
	}

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 221.0, recent[0].Voltage)
	assert.Equal(t, time.Unix(3, 0), recent[2].Timestamp)
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := int64(1); i <= 12; i++ {
		require.NoError(t, svc.RecordReading(ctx, reading(i, float64(200+i))))
	}

	recent, err := svc.Recent(ctx, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, []float64{209, 210, 211, 212}, []float64{
		recent[0].Voltage, recent[1].Voltage, recent[2].Voltage, recent[3].Voltage,
	})
}

func TestRecordRejectsInvalidReading(t *testing.T) {
	svc := newTestService(t)

	err := svc.RecordReading(context.Background(), monitor.SensorReading{Voltage: 230})
	assert.ErrorIs(t, err, monitor.ErrInvalidReading)
}

func TestAlertAcknowledgementPersists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := monitor.Alert{
		ID:        "a1",
		Kind:      monitor.VoltageLow,
		Message:   "Low voltage detected: 170.0V",
		Severity:  monitor.SeverityError,
		Timestamp: time.UnixMilli(1_700_000_000_123),
	}
	svc.AlertAppended(a)
	svc.AlertAppended(monitor.Alert{ID: "a2", Kind: monitor.AllNormal, Severity: monitor.SeveritySuccess,
		Message: "All parameters within normal range", Timestamp: a.Timestamp.Add(time.Second)})

	a.Acknowledged = true
	svc.AlertAcknowledged(a)

	alerts, err := svc.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a2", alerts[0].ID)
	assert.Equal(t, a, alerts[1])
}

func TestAcknowledgedAlertIsNotReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := monitor.Alert{ID: "a1", Kind: monitor.PowerHigh, Severity: monitor.SeverityWarning, Timestamp: time.UnixMilli(5)}
	acked := a
	acked.Acknowledged = true

	require.NoError(t, svc.RecordAlert(ctx, acked))
	require.NoError(t, svc.RecordAlert(ctx, a))

	alerts, err := svc.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Acknowledged)
}

func TestReadingsSurviveReopen(t *testing.T) {
	cfg := testConfig(t)
	log := logger.WithComponent("telemetry")

	svc, err := NewService(cfg, log)
	require.NoError(t, err)
	require.NoError(t, svc.RecordReading(context.Background(), reading(1, 230)))
	require.NoError(t, svc.Close())

	svc, err = NewService(cfg, log)
	require.NoError(t, err)
	defer svc.Close()

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	cfg := testConfig(t)

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	svc, err := NewService(cfg, logger.WithComponent("telemetry"))
	require.NoError(t, err)
	defer svc.Close()

	entries, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "telemetry_v99_")
}

type blockingRepo struct {
	release chan struct{}

	mu     sync.Mutex
	alerts []monitor.Alert
}

func (r *blockingRepo) StoreReading(monitor.SensorReading) error { return nil }

func (r *blockingRepo) StoreAlert(ctx context.Context, a monitor.Alert) error {
	select {
	case <-r.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *blockingRepo) Readings(context.Context, int) ([]monitor.SensorReading, error) {
	return nil, nil
}

func (r *blockingRepo) Alerts(context.Context, int) ([]monitor.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]monitor.Alert(nil), r.alerts...), nil
}

func (r *blockingRepo) Close() error { return nil }

func TestAlertObserverDoesNotWaitForStore(t *testing.T) {
	repo := &blockingRepo{release: make(chan struct{})}
	svc := newService(repo, testConfig(t), logger.WithComponent("telemetry"))
	t.Cleanup(func() { _ = svc.Close() })

	returned := make(chan struct{})
	go func() {
		svc.AlertAppended(monitor.Alert{ID: "a1", Kind: monitor.VoltageLow})
		svc.AlertAcknowledged(monitor.Alert{ID: "a1", Kind: monitor.VoltageLow, Acknowledged: true})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("alert observer waited for the store")
	}

	close(repo.release)
	alerts, err := svc.RecentAlerts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.True(t, alerts[1].Acknowledged)
}

func TestCloseWritesQueuedAlerts(t *testing.T) {
	repo := &blockingRepo{release: make(chan struct{})}
	close(repo.release)
	svc := newService(repo, testConfig(t), logger.WithComponent("telemetry"))

	svc.AlertAppended(monitor.Alert{ID: "a1", Kind: monitor.PowerHigh})
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	alerts, err := repo.Alerts(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}
