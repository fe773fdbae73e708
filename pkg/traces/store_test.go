package traces

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/shadow"
	"github.com/jingkaihe/skillforge/pkg/teacher"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
	"github.com/jingkaihe/skillforge/pkg/validation"
)

func sampleRecord(id string, created time.Time) Record {
	res := &teacher.Result{
		SessionID:  id,
		Task:       "configure the example client",
		CorpusPath: "/tmp/corpora/configure-the-example-client_20261001_120000",
		Model:      "claude-sonnet-4-20250514",
		Success:    true,
		Trace: []teacher.AttemptRecord{
			{AttemptNumber: 1, Input: "Please complete this task", Output: "request_documentation({})", Marker: "request_documentation", GapQuery: "example client retries", GapSourcesAdded: 2},
			{
				AttemptNumber:  2,
				Input:          "Please complete this task",
				Output:         "solution",
				Marker:         "complete_task",
				Validation:     &shadow.Result{Passed: true, Warnings: []string{"no code blocks detected for static analysis"}},
				AnalysisOutput: "COMPLETE",
				Verdict:        "COMPLETE",
			},
		},
		FinalOutput: "solution",
		Attempts:    2,
		GapsFilled:  []string{"example client retries"},
		Usage:       llmtypes.Usage{InputTokens: 1200, OutputTokens: 300},
		StartedAt:   created.Add(-time.Minute),
		FinishedAt:  created,
	}
	rec := NewRecord(res, nil, &validation.Report{Passed: true, ChecksRun: 4, ChecksPassed: 4})
	rec.CreatedAt = created
	return rec
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	jsonStore, err := NewJSONStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), db.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{StoreJSON: jsonStore, StoreSQLite: sqliteStore}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleRecord("s1", created)
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx, "s1")
			require.NoError(t, err)

			assert.Equal(t, want.SessionID, got.SessionID)
			assert.Equal(t, want.Task, got.Task)
			assert.Equal(t, want.CorpusPath, got.CorpusPath)
			assert.Equal(t, want.Model, got.Model)
			assert.True(t, got.Success)
			assert.Equal(t, 2, got.Attempts)
			assert.Equal(t, want.GapsFilled, got.GapsFilled)
			assert.Equal(t, want.Usage, got.Usage)
			assert.Equal(t, want.Validation, got.Validation)
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
			assert.True(t, want.StartedAt.Equal(got.StartedAt))
			assert.Empty(t, got.Error)

			require.Len(t, got.Trace, 2)
			assert.Equal(t, want.Trace[0], got.Trace[0])
			assert.Equal(t, want.Trace[1], got.Trace[1])
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord("s1", created)
			require.NoError(t, store.Save(ctx, rec))

			rec.Success = false
			rec.Trace = rec.Trace[:1]
			rec.Error = "teacher_session: max attempts reached without success"
			require.NoError(t, store.Save(ctx, rec))

			got, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, got.Success)
			assert.Len(t, got.Trace, 1)
			assert.Equal(t, rec.Error, got.Error)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			require.NoError(t, store.Save(ctx, sampleRecord("old", base)))
			require.NoError(t, store.Save(ctx, sampleRecord("new", base.Add(time.Hour))))

			list, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "new", list[0].ID)
			assert.Equal(t, "old", list[1].ID)
			assert.Equal(t, 1, list[0].GapsFilled)
			assert.Equal(t, 2, list[0].Attempts)
			assert.True(t, list[0].Success)
			assert.Equal(t, llmtypes.Usage{InputTokens: 1200, OutputTokens: 300}, list[0].Usage)
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(context.Background(), "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Save(context.Background(), Record{}))
		})
	}
}

func TestJSONStoreSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sampleRecord("s1", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)

	_, err = os.Stat(filepath.Join(dir, "s1.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewRecordKeepsSessionError(t *testing.T) {
	res := &teacher.Result{SessionID: "s1"}
	err := forgeerr.New(forgeerr.KindAnalysis, "unparseable model answer")
	rec := NewRecord(res, err, nil)
	assert.Equal(t, err.Error(), rec.Error)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	stateDir := t.TempDir()

	s, err := New(ctx, config.TracesConfig{Store: StoreJSON}, stateDir)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)
	assert.DirExists(t, filepath.Join(stateDir, "sessions"))

	s, err = New(ctx, config.TracesConfig{Store: StoreSQLite}, stateDir)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
	assert.FileExists(t, db.Path(stateDir))

	_, err = New(ctx, config.TracesConfig{Store: "bbolt"}, stateDir)
	assert.ErrorContains(t, err, `unknown trace store "bbolt"`)
}
