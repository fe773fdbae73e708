package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/sources"
)

// LoadAsContext concatenates the corpus pages in manifest order, front
// matter stripped, each under a "=== SOURCE: <url> ===" header. A missing or
// empty page referenced by the manifest is an error; no partial context is
// returned.
func LoadAsContext(dir string) (string, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return "", forgeerr.Wrap(forgeerr.KindCorpusLoad, err, "failed to load corpus")
	}
	if len(m.Pages) == 0 {
		return "", forgeerr.New(forgeerr.KindCorpusLoad, "no pages found in corpus at %s", dir)
	}

	parts := make([]string, 0, len(m.Pages))
	for _, info := range m.Pages {
		page, err := ReadPage(filepath.Join(dir, info.Filename))
		if err != nil {
			return "", forgeerr.Wrap(forgeerr.KindCorpusLoad, err, "page %s listed in manifest is unreadable", info.Filename)
		}
		if page.Body == "" {
			return "", forgeerr.New(forgeerr.KindCorpusLoad, "page %s listed in manifest is empty", info.Filename)
		}
		parts = append(parts, "=== SOURCE: "+info.URL+" ===\n\n"+page.Body)
	}

	return strings.Join(parts, "\n\n"), nil
}

// Enrich appends every source whose URL is new to the corpus and which
// carries content. It returns the number of pages added; the manifest is
// rewritten only when something was added.
func Enrich(ctx context.Context, dir string, srcs []sources.Source) (int, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return 0, forgeerr.Wrap(forgeerr.KindCorpusUpdate, err, "failed to update corpus")
	}

	now := time.Now()
	index := m.nextIndex()
	added := 0

	var written []string
	for _, s := range srcs {
		if !s.HasContent() || m.HasURL(s.URL) {
			continue
		}
		info, err := writePage(dir, index, s, s.Content, now)
		if err != nil {
			removePages(dir, written)
			return 0, forgeerr.Wrap(forgeerr.KindCorpusUpdate, err, "failed to update corpus")
		}
		written = append(written, info.Filename)
		m.Pages = append(m.Pages, info)
		index++
		added++
	}

	if added == 0 {
		return 0, nil
	}

	m.UpdatedAt = now.UTC()
	if err := writeManifest(dir, m); err != nil {
		removePages(dir, written)
		return 0, forgeerr.Wrap(forgeerr.KindCorpusUpdate, err, "failed to update corpus")
	}

	logger.G(ctx).WithField("dir", dir).WithField("added", added).WithField("total_pages", m.TotalPages).Info("corpus enriched")
	return added, nil
}

// removePages deletes page files that never made it into the manifest, so
// their ordinals stay free.
func removePages(dir string, filenames []string) {
	for _, name := range filenames {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
