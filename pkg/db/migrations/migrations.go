// Package migrations lists the trace database schema changes.
package migrations

import (
	"github.com/jingkaihe/skillforge/pkg/db"
)

// All returns every migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261001120000CreateSessions(),
		Migration20261001120001CreateAttempts(),
		Migration20261001120002AddSessionDetails(),
	}
}
