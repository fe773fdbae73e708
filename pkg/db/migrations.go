package db

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

// Migration is a trace schema change. Version is a YYYYMMDDHHmmss timestamp.
type Migration struct {
	Version     int64
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Migration
	Applied   bool
	AppliedAt time.Time
}

type appliedRow struct {
	Version   int64     `db:"version"`
	AppliedAt time.Time `db:"applied_at"`
}

// Migrator applies trace schema migrations and records them in
// schema_migrations.
type Migrator struct {
	db *sqlx.DB
}

func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate applies every pending migration in version order, one transaction
// each. A failed migration leaves earlier ones applied.
func (m *Migrator) Migrate(ctx context.Context, migrations []Migration) error {
	statuses, err := m.Status(ctx, migrations)
	if err != nil {
		return err
	}

	for _, s := range statuses {
		if s.Applied {
			continue
		}
		if err := m.inTx(ctx, s.Up, "INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			s.Version, time.Now().UTC(), s.Description); err != nil {
			return errors.Wrapf(err, "failed to apply migration %d: %s", s.Version, s.Description)
		}
		logger.G(ctx).WithField("version", s.Version).WithField("description", s.Description).Debug("applied trace schema migration")
	}
	return nil
}

// Status returns migrations sorted by version with their applied state.
func (m *Migrator) Status(ctx context.Context, migrations []Migration) ([]MigrationStatus, error) {
	if err := validateMigrations(migrations); err != nil {
		return nil, err
	}
	rows, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	appliedAt := make(map[int64]time.Time, len(rows))
	for _, r := range rows {
		appliedAt[r.Version] = r.AppliedAt
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mg := range migrations {
		at, ok := appliedAt[mg.Version]
		statuses = append(statuses, MigrationStatus{Migration: mg, Applied: ok, AppliedAt: at})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Version < statuses[j].Version
	})
	return statuses, nil
}

// AppliedVersions returns applied versions in ascending order.
func (m *Migrator) AppliedVersions(ctx context.Context) ([]int64, error) {
	rows, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(rows))
	for _, r := range rows {
		versions = append(versions, r.Version)
	}
	return versions, nil
}

// Rollback reverts the most recently applied migration. It is a no-op on an
// empty database.
func (m *Migrator) Rollback(ctx context.Context, migrations []Migration) error {
	versions, err := m.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return nil
	}
	latest := versions[len(versions)-1]

	for _, mg := range migrations {
		if mg.Version != latest {
			continue
		}
		if mg.Down == nil {
			return errors.Errorf("migration %d has no rollback function", latest)
		}
		if err := m.inTx(ctx, mg.Down, "DELETE FROM schema_migrations WHERE version = ?", latest); err != nil {
			return errors.Wrapf(err, "failed to roll back migration %d", latest)
		}
		return nil
	}
	return errors.Errorf("migration %d not found in provided migrations", latest)
}

func (m *Migrator) applied(ctx context.Context) ([]appliedRow, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL,
			description TEXT
		)`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema_migrations table")
	}

	var rows []appliedRow
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, applied_at FROM schema_migrations ORDER BY version"); err != nil {
		return nil, errors.Wrap(err, "failed to read applied migrations")
	}
	return rows, nil
}

// inTx runs change and the bookkeeping statement in one transaction.
func (m *Migrator) inTx(ctx context.Context, change func(*sql.Tx) error, bookkeeping string, args ...any) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := change(tx.Tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return errors.Wrap(err, "failed to update schema_migrations")
	}
	return tx.Commit()
}

func validateMigrations(migrations []Migration) error {
	seen := make(map[int64]bool, len(migrations))
	for _, mg := range migrations {
		if mg.Version <= 0 {
			return errors.Errorf("migration %q has no version", mg.Description)
		}
		if mg.Up == nil {
			return errors.Errorf("migration %d has no up function", mg.Version)
		}
		if seen[mg.Version] {
			return errors.Errorf("duplicate migration version %d", mg.Version)
		}
		seen[mg.Version] = true
	}
	return nil
}
