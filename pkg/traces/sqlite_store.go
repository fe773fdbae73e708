package traces

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/db/migrations"
	"github.com/jingkaihe/skillforge/pkg/teacher"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
	"github.com/jingkaihe/skillforge/pkg/validation"
)

// JSONField stores a value as a JSON text column.
type JSONField[T any] struct {
	Data T
}

// Scan implements sql.Scanner.
func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into JSONField", value)
	}
	return json.Unmarshal(b, &j.Data)
}

// Value implements driver.Valuer.
func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type dbSession struct {
	ID          string                        `db:"id"`
	Task        string                        `db:"task"`
	CorpusPath  string                        `db:"corpus_path"`
	Model       string                        `db:"model"`
	Success     bool                          `db:"success"`
	Attempts    int                           `db:"attempts"`
	GapsFilled  JSONField[[]string]           `db:"gaps_filled"`
	FinalOutput string                        `db:"final_output"`
	Summary     string                        `db:"summary"`
	Error       sql.NullString                `db:"error"`
	Usage       JSONField[llmtypes.Usage]     `db:"usage"`
	Validation  JSONField[*validation.Report] `db:"validation"`
	StartedAt   sql.NullTime                  `db:"started_at"`
	FinishedAt  sql.NullTime                  `db:"finished_at"`
	CreatedAt   time.Time                     `db:"created_at"`
}

type dbAttempt struct {
	SessionID     string                           `db:"session_id"`
	AttemptNumber int                              `db:"attempt_number"`
	Marker        string                           `db:"marker"`
	Record        JSONField[teacher.AttemptRecord] `db:"record"`
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func toDBSession(rec Record) dbSession {
	gaps := rec.GapsFilled
	if gaps == nil {
		gaps = []string{}
	}
	return dbSession{
		ID:          rec.SessionID,
		Task:        rec.Task,
		CorpusPath:  rec.CorpusPath,
		Model:       rec.Model,
		Success:     rec.Success,
		Attempts:    rec.Attempts,
		GapsFilled:  JSONField[[]string]{Data: gaps},
		FinalOutput: rec.FinalOutput,
		Summary:     rec.Summary,
		Error:       sql.NullString{String: rec.Error, Valid: rec.Error != ""},
		Usage:       JSONField[llmtypes.Usage]{Data: rec.Usage},
		Validation:  JSONField[*validation.Report]{Data: rec.Validation},
		StartedAt:   nullTime(rec.StartedAt),
		FinishedAt:  nullTime(rec.FinishedAt),
		CreatedAt:   rec.CreatedAt,
	}
}

func (d dbSession) toRecord(attempts []dbAttempt) Record {
	rec := Record{
		Result: teacher.Result{
			SessionID:   d.ID,
			Task:        d.Task,
			CorpusPath:  d.CorpusPath,
			Model:       d.Model,
			Success:     d.Success,
			FinalOutput: d.FinalOutput,
			Summary:     d.Summary,
			Attempts:    d.Attempts,
			GapsFilled:  d.GapsFilled.Data,
			Usage:       d.Usage.Data,
			StartedAt:   d.StartedAt.Time,
			FinishedAt:  d.FinishedAt.Time,
		},
		Error:      d.Error.String,
		Validation: d.Validation.Data,
		CreatedAt:  d.CreatedAt,
	}
	for _, a := range attempts {
		rec.Trace = append(rec.Trace, a.Record.Data)
	}
	return rec
}

// SQLiteStore keeps sessions and their attempts in SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens dbPath and applies the trace migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	conn, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open trace database")
	}
	return &SQLiteStore{db: conn}, nil
}

// Save inserts or replaces a session and its attempts in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.SessionID == "" {
		return errors.New("session record has no ID")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, rec.SessionID); err != nil {
		return errors.Wrap(err, "failed to replace session")
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO sessions (id, task, corpus_path, model, success, attempts, gaps_filled, final_output,
			summary, error, usage, validation, started_at, finished_at, created_at)
		VALUES (:id, :task, :corpus_path, :model, :success, :attempts, :gaps_filled, :final_output,
			:summary, :error, :usage, :validation, :started_at, :finished_at, :created_at)
	`, toDBSession(rec))
	if err != nil {
		return errors.Wrap(err, "failed to insert session")
	}

	for _, a := range rec.Trace {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO attempts (session_id, attempt_number, marker, record)
			VALUES (:session_id, :attempt_number, :marker, :record)
		`, dbAttempt{
			SessionID:     rec.SessionID,
			AttemptNumber: a.AttemptNumber,
			Marker:        a.Marker,
			Record:        JSONField[teacher.AttemptRecord]{Data: a},
		})
		if err != nil {
			return errors.Wrapf(err, "failed to insert attempt %d", a.AttemptNumber)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit session")
}

// Load reads a session and its attempts.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Record, error) {
	var d dbSession
	err := s.db.GetContext(ctx, &d, `
		SELECT id, task, corpus_path, model, success, attempts, gaps_filled, final_output,
			summary, error, usage, validation, started_at, finished_at, created_at
		FROM sessions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, errors.Wrapf(ErrNotFound, "session %s", id)
		}
		return Record{}, errors.Wrap(err, "failed to load session")
	}

	var attempts []dbAttempt
	err = s.db.SelectContext(ctx, &attempts, `
		SELECT session_id, attempt_number, marker, record
		FROM attempts WHERE session_id = ? ORDER BY attempt_number`, id)
	if err != nil {
		return Record{}, errors.Wrap(err, "failed to load attempts")
	}

	return d.toRecord(attempts), nil
}

type dbSummary struct {
	Summary
	DBUsage JSONField[llmtypes.Usage] `db:"usage"`
}

// List returns session summaries, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	var rows []dbSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, task, model, success, attempts, json_array_length(gaps_filled) AS gaps_filled, created_at, usage
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	summaries := make([]Summary, 0, len(rows))
	for _, r := range rows {
		sum := r.Summary
		sum.Usage = r.DBUsage.Data
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
