package telemetry

import (
	"database/sql"

	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS readings (
	       timestamp INTEGER PRIMARY KEY,
	       voltage   REAL NOT NULL,
	       current   REAL NOT NULL,
	       power     REAL NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS alerts (
	       id           TEXT PRIMARY KEY,
	       kind         TEXT NOT NULL,
	       message      TEXT NOT NULL,
	       severity     TEXT NOT NULL,
	       timestamp    INTEGER NOT NULL,
	       acknowledged INTEGER NOT NULL DEFAULT 0 CHECK (acknowledged IN (0, 1))
	   );
	   CREATE INDEX IF NOT EXISTS alerts_timestamp ON alerts (timestamp);`

	insertReadingSQL = `
    INSERT INTO readings (timestamp, voltage, current, power)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(timestamp) DO UPDATE SET
        voltage = excluded.voltage,
        current = excluded.current,
        power = excluded.power`

	upsertAlertSQL = `
    INSERT INTO alerts (id, kind, message, severity, timestamp, acknowledged)
    VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        acknowledged = MAX(alerts.acknowledged, excluded.acknowledged)`

	selectReadingsSQL = `
    SELECT timestamp, voltage, current, power FROM (
        SELECT timestamp, voltage, current, power
        FROM readings
        ORDER BY timestamp DESC
        LIMIT ?
    ) ORDER BY timestamp ASC`

	selectAlertsSQL = `
    SELECT id, kind, message, severity, timestamp, acknowledged
    FROM alerts
    ORDER BY timestamp DESC, rowid DESC
    LIMIT ?`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for a new database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
