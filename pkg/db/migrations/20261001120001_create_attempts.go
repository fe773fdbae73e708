package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261001120001CreateAttempts creates the per-attempt trace table.
func Migration20261001120001CreateAttempts() db.Migration {
	return db.Migration{
		Version:     20261001120001,
		Description: "Create attempts table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS attempts (
					session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
					attempt_number INTEGER NOT NULL,
					marker TEXT NOT NULL,
					record TEXT NOT NULL,
					PRIMARY KEY (session_id, attempt_number)
				)
			`)
			return errors.Wrap(err, "failed to create attempts table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS attempts")
			return errors.Wrap(err, "failed to drop attempts table")
		},
	}
}
