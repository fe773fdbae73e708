package traces

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

// JSONStore keeps one JSON file per session.
type JSONStore struct {
	basePath string
}

// NewJSONStore creates the store directory if needed.
func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create sessions directory")
	}
	return &JSONStore{basePath: basePath}, nil
}

func (s *JSONStore) path(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

// Save writes rec atomically.
func (s *JSONStore) Save(_ context.Context, rec Record) error {
	if rec.SessionID == "" {
		return errors.New("session record has no ID")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal session record")
	}

	filePath := s.path(rec.SessionID)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary session file")
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary session file")
	}
	return nil
}

// Load reads a session record.
func (s *JSONStore) Load(_ context.Context, id string) (Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.Wrapf(ErrNotFound, "session %s", id)
		}
		return Record{}, errors.Wrap(err, "failed to read session file")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, errors.Wrap(err, "failed to unmarshal session record")
	}
	return rec, nil
}

// List returns summaries of every readable session file. Unreadable files
// are logged and skipped.
func (s *JSONStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	summaries := []Summary{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.Load(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			logger.G(ctx).WithError(err).WithField("file", e.Name()).Warn("skipping unreadable session file")
			continue
		}
		summaries = append(summaries, rec.ToSummary())
	}
	sortNewestFirst(summaries)
	return summaries, nil
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}
