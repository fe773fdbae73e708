// Package db opens the SQLite database that stores session traces.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// FileName is the database file name inside the state directory.
const FileName = "traces.db"

// Path returns the database path under stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Open opens or creates a SQLite database at dbPath in WAL mode.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return db, nil
}

// Configure applies the pragmas the trace store relies on. A single open
// connection keeps the pipeline a single writer.
func Configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled. Current mode: %s", journalMode)
	}

	var foreignKeys int
	if err := db.GetContext(ctx, &foreignKeys, "PRAGMA foreign_keys"); err != nil {
		return errors.Wrap(err, "failed to query foreign keys")
	}
	if foreignKeys != 1 {
		return errors.New("foreign keys not enabled")
	}

	return nil
}

// OpenMigrated opens dbPath and applies migrations.
func OpenMigrated(ctx context.Context, dbPath string, migrations []Migration) (*sqlx.DB, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(db).Migrate(ctx, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
