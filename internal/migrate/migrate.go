// Package migrate handles SQL database migration for the whispqr database.
// The schema is written once and specialised for the SQL dialect of the connected driver.
package migrate

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/whispqr/internal/repos"
)

var migrations []dbMigration

type dbMigration struct {
	Version uint
	Queries []string
}

// dialect holds the column types that differ between the supported databases
type dialect struct {
	timestamp string
	boolean   string
}

var dialects = map[string]dialect{
	"sqlite3":  {timestamp: "DATETIME", boolean: "BOOLEAN"},
	"postgres": {timestamp: "TIMESTAMP", boolean: "BOOLEAN"},
	"pgx":      {timestamp: "TIMESTAMP", boolean: "BOOLEAN"},
	"mysql":    {timestamp: "DATETIME(6)", boolean: "BOOLEAN"},
}

func (d dialect) replacer() *strings.Replacer {
	return strings.NewReplacer("{timestamp}", d.timestamp, "{bool}", d.boolean)
}

// Execute runs the current DB migration on the given database
func (mig *dbMigration) Execute(db *sqlx.DB, d dialect, logger *logrus.Entry) error {
	// Check if the migration has already run
	var success = false
	err := db.QueryRow(db.Rebind(`SELECT success FROM migrations WHERE version = ?`), mig.Version).Scan(&success)
	if err != nil && err != sql.ErrNoRows {
		logger.WithError(err).Error("Failed to fetch version information")
		return err
	}
	if success {
		return nil
	}
	// We need to execute this migration
	logger.Infof("Executing DB migration #%d", mig.Version)
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	r := d.replacer()
	for i, query := range mig.Queries {
		logger.Infof("Query %d of %d...", (i + 1), len(mig.Queries))
		if _, err := tx.Exec(r.Replace(query)); err != nil {
			logger.WithError(err).Errorf("Query #%d failed", (i + 1))
			err = repos.DoRollback(tx, err)
			setStatus(db, mig.Version, false)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		setStatus(db, mig.Version, false)
		return err
	}
	// Queries executed successfully - save our status
	return setStatus(db, mig.Version, true)
}

// setStatus stores the outcome of a migration
func setStatus(db *sqlx.DB, version uint, success bool) error {
	res, err := db.Exec(db.Rebind(`UPDATE migrations SET success = ? WHERE version = ?`), success, version)
	if err != nil {
		return err
	}
	if num, err := res.RowsAffected(); err == nil && num > 0 {
		return nil
	}
	_, err = db.Exec(db.Rebind(`INSERT INTO migrations(version, success) VALUES(?, ?)`), version, success)
	return err
}

// ExecuteMigrationsOnDb executes the database migrations on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, logger *logrus.Entry) error {
	d, ok := dialects[db.DriverName()]
	if !ok {
		return fmt.Errorf("ExecuteMigrationsOnDb: unsupported database driver '%s'", db.DriverName())
	}
	// Create the migrations table if it does not exist, yet
	query := d.replacer().Replace(`CREATE TABLE IF NOT EXISTS migrations (
                version   INTEGER NOT NULL,
                success   {bool} NOT NULL DEFAULT FALSE,
                PRIMARY KEY(version)
            )`)
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, d, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// For now, the migrations are part of the package...
func init() {
	migrations = []dbMigration{
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE events (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    name VARCHAR(100) NOT NULL,
                    description VARCHAR(500) NOT NULL DEFAULT '',
                    location VARCHAR(100) NOT NULL DEFAULT '',
                    host_id VARCHAR(128) NOT NULL,
                    host_name VARCHAR(128) NOT NULL DEFAULT '',
                    allow_public_messages {bool} NOT NULL DEFAULT FALSE,
                    string_code VARCHAR(6) NOT NULL,
                    is_active {bool} NOT NULL DEFAULT TRUE,
                    is_deleted {bool} NOT NULL DEFAULT FALSE,
                    created_at {timestamp} NOT NULL,
                    updated_at {timestamp} NOT NULL,
                    deleted_at {timestamp} NULL
                )`,
				`CREATE TABLE messages (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    event_id VARCHAR(36) NOT NULL,
                    content VARCHAR(1000) NOT NULL,
                    is_public {bool} NOT NULL DEFAULT FALSE,
                    is_deleted {bool} NOT NULL DEFAULT FALSE,
                    created_at {timestamp} NOT NULL,
                    deleted_at {timestamp} NULL
                )`,
				`CREATE INDEX idx_events_code ON events (string_code)`,
				`CREATE INDEX idx_events_host ON events (host_id, created_at)`,
				`CREATE INDEX idx_messages_event ON messages (event_id, created_at)`,
			},
		},
	}
}
