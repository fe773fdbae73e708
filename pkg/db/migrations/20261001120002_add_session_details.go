package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261001120002AddSessionDetails records the model, usage and
// post-session validation alongside each session.
func Migration20261001120002AddSessionDetails() db.Migration {
	columns := []string{
		"ALTER TABLE sessions ADD COLUMN model TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE sessions ADD COLUMN summary TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE sessions ADD COLUMN usage TEXT NOT NULL DEFAULT '{}'",
		"ALTER TABLE sessions ADD COLUMN validation TEXT",
		"ALTER TABLE sessions ADD COLUMN started_at DATETIME",
		"ALTER TABLE sessions ADD COLUMN finished_at DATETIME",
	}
	return db.Migration{
		Version:     20261001120002,
		Description: "Add session details",
		Up: func(tx *sql.Tx) error {
			for _, stmt := range columns {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrapf(err, "failed to apply %q", stmt)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, col := range []string{"model", "summary", "usage", "validation", "started_at", "finished_at"} {
				if _, err := tx.Exec("ALTER TABLE sessions DROP COLUMN " + col); err != nil {
					return errors.Wrapf(err, "failed to drop column %s", col)
				}
			}
			return nil
		},
	}
}
