package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261001120000CreateSessions creates the sessions table.
func Migration20261001120000CreateSessions() db.Migration {
	return db.Migration{
		Version:     20261001120000,
		Description: "Create sessions table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS sessions (
					id TEXT PRIMARY KEY,
					task TEXT NOT NULL,
					corpus_path TEXT NOT NULL,
					success INTEGER NOT NULL,
					attempts INTEGER NOT NULL,
					gaps_filled TEXT NOT NULL,
					final_output TEXT NOT NULL,
					error TEXT,
					created_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create sessions table")
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC)`); err != nil {
				return errors.Wrap(err, "failed to create sessions index")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS sessions")
			return errors.Wrap(err, "failed to drop sessions table")
		},
	}
}
