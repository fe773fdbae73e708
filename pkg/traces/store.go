// Package traces persists teacher session results so they can be listed and
// inspected after the run.
package traces

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/teacher"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
	"github.com/jingkaihe/skillforge/pkg/validation"
)

// Store types.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// ErrNotFound is returned when a session is not in the store.
var ErrNotFound = errors.New("session not found")

// Record is a persisted session: the teacher result plus how it ended.
type Record struct {
	teacher.Result
	// Error is the terminal session error, empty on success.
	Error      string             `json:"error,omitempty"`
	Validation *validation.Report `json:"validation,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Summary is the listing view of a Record.
type Summary struct {
	ID         string    `json:"id" db:"id"`
	Task       string    `json:"task" db:"task"`
	Model      string    `json:"model" db:"model"`
	Success    bool      `json:"success" db:"success"`
	Attempts   int       `json:"attempts" db:"attempts"`
	GapsFilled int       `json:"gaps_filled" db:"gaps_filled"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	Usage llmtypes.Usage `json:"usage" db:"-"`
}

func (s Summary) GetCreatedAt() time.Time  { return s.CreatedAt }
func (s Summary) GetModel() string         { return s.Model }
func (s Summary) GetUsage() llmtypes.Usage { return s.Usage }
func (s Summary) GetGapsFilled() int       { return s.GapsFilled }
func (s Summary) IsSuccess() bool          { return s.Success }

// ToSummary returns the listing view of r.
func (r Record) ToSummary() Summary {
	return Summary{
		ID:         r.SessionID,
		Task:       r.Task,
		Model:      r.Model,
		Success:    r.Success,
		Attempts:   r.Attempts,
		GapsFilled: len(r.GapsFilled),
		CreatedAt:  r.CreatedAt,
		Usage:      r.Usage,
	}
}

// NewRecord builds the record persisted for a finished session.
func NewRecord(res *teacher.Result, sessionErr error, report *validation.Report) Record {
	rec := Record{Result: *res, Validation: report, CreatedAt: time.Now()}
	if sessionErr != nil {
		rec.Error = sessionErr.Error()
	}
	return rec
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	// List returns all sessions, newest first.
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// New opens the store selected by cfg under stateDir.
func New(ctx context.Context, cfg config.TracesConfig, stateDir string) (Store, error) {
	switch cfg.Store {
	case StoreSQLite:
		return NewSQLiteStore(ctx, db.Path(stateDir))
	case StoreJSON, "":
		return NewJSONStore(filepath.Join(stateDir, "sessions"))
	default:
		return nil, errors.Errorf("unknown trace store %q", cfg.Store)
	}
}

func sortNewestFirst(s []Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].CreatedAt.After(s[j].CreatedAt)
	})
}
