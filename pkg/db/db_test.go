package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db interface {
	QueryRow(string, ...any) *sql.Row
}, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/state", "traces.db"), Path("/state"))
}

func TestOpenCreatesDirectoryInWALMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state", FileName)

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)
}

func sessionMigrations() []Migration {
	return []Migration{
		{
			Version:     20261001120001,
			Description: "Add attempts",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE attempts (session_id TEXT REFERENCES sessions(id), n INTEGER)")
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec("DROP TABLE attempts")
				return err
			},
		},
		{
			Version:     20261001120000,
			Description: "Create sessions",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE sessions (id TEXT PRIMARY KEY)")
				return err
			},
		},
	}
}

func TestMigrator(t *testing.T) {
	ctx := context.Background()

	t.Run("applies in version order", func(t *testing.T) {
		db, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		defer db.Close()

		runner := NewMigrator(db)
		require.NoError(t, runner.Migrate(ctx, sessionMigrations()))

		assert.True(t, tableExists(t, db, "sessions"))
		assert.True(t, tableExists(t, db, "attempts"))

		versions, err := runner.AppliedVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{20261001120000, 20261001120001}, versions)
	})

	t.Run("is idempotent", func(t *testing.T) {
		db, err := OpenMigrated(ctx, filepath.Join(t.TempDir(), FileName), sessionMigrations())
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, NewMigrator(db).Migrate(ctx, sessionMigrations()))

		var count int
		require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"))
		assert.Equal(t, 2, count)
	})

	t.Run("rolls back the latest migration", func(t *testing.T) {
		db, err := OpenMigrated(ctx, filepath.Join(t.TempDir(), FileName), sessionMigrations())
		require.NoError(t, err)
		defer db.Close()

		runner := NewMigrator(db)
		require.NoError(t, runner.Rollback(ctx, sessionMigrations()))
		assert.False(t, tableExists(t, db, "attempts"))
		assert.True(t, tableExists(t, db, "sessions"))

		err = runner.Rollback(ctx, sessionMigrations())
		assert.ErrorContains(t, err, "has no rollback function")
	})

	t.Run("failed migration is not recorded", func(t *testing.T) {
		db, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		defer db.Close()

		runner := NewMigrator(db)
		err = runner.Migrate(ctx, []Migration{{
			Version:     20261001130000,
			Description: "broken",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE")
				return err
			},
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply migration 20261001130000: broken")

		versions, err := runner.AppliedVersions(ctx)
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("reports status", func(t *testing.T) {
		db, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		defer db.Close()

		runner := NewMigrator(db)
		ms := sessionMigrations()
		require.NoError(t, runner.Migrate(ctx, ms[:1]))

		statuses, err := runner.Status(ctx, []Migration{ms[1], ms[0]})
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		assert.Equal(t, int64(20261001120000), statuses[0].Version)
		assert.True(t, statuses[0].Applied)
		assert.False(t, statuses[0].AppliedAt.IsZero())
		assert.False(t, statuses[1].Applied)
	})

	t.Run("rejects invalid migration sets", func(t *testing.T) {
		db, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		defer db.Close()

		runner := NewMigrator(db)
		ms := sessionMigrations()
		assert.ErrorContains(t, runner.Migrate(ctx, append(ms, ms[0])), "duplicate migration version")
		assert.ErrorContains(t, runner.Migrate(ctx, []Migration{{Version: 1, Description: "empty"}}), "no up function")
		assert.ErrorContains(t, runner.Migrate(ctx, []Migration{{Description: "unversioned", Up: ms[0].Up}}), "has no version")
	})
}
