package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/sources"
)

// ManifestFile is the manifest file name inside a corpus directory.
const ManifestFile = "manifest.json"

// Manifest indexes the pages of a corpus. It is the single source of truth
// for which pages belong to the corpus and in what order.
type Manifest struct {
	Task                string         `json:"task"`
	SeedURL             string         `json:"seed_url,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Pages               []PageInfo     `json:"pages"`
	TotalPages          int            `json:"total_pages"`
	TotalTokensEstimate int            `json:"total_tokens_estimate"`
	TierBreakdown       map[string]int `json:"tier_breakdown"`
}

func tierKey(t sources.Tier) string {
	return "tier_" + strconv.Itoa(int(t))
}

// recompute brings the aggregate fields in line with Pages.
func (m *Manifest) recompute() {
	m.TotalPages = len(m.Pages)
	m.TotalTokensEstimate = 0
	m.TierBreakdown = map[string]int{
		tierKey(sources.Tier1): 0,
		tierKey(sources.Tier2): 0,
		tierKey(sources.Tier3): 0,
	}
	for _, p := range m.Pages {
		m.TotalTokensEstimate += p.TokenEstimate
		m.TierBreakdown[tierKey(p.Tier)]++
	}
}

// HasURL reports whether a page with rawURL is already in the manifest.
func (m *Manifest) HasURL(rawURL string) bool {
	key := sources.NormalizeURL(rawURL)
	for _, p := range m.Pages {
		if sources.NormalizeURL(p.URL) == key {
			return true
		}
	}
	return false
}

// nextIndex returns the ordinal for the next page file. Ordinals are never reused.
func (m *Manifest) nextIndex() int {
	next := len(m.Pages) + 1
	for _, p := range m.Pages {
		prefix, _, ok := strings.Cut(p.Filename, "_")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(prefix); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// ReadManifest reads the manifest of the corpus at dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Wrapf(err, "no manifest found at %s", dir)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest at %s", dir)
	}
	return &m, nil
}

// writeManifest replaces the manifest atomically: temp file, then rename.
func writeManifest(dir string, m *Manifest) error {
	m.recompute()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal manifest")
	}

	path := filepath.Join(dir, ManifestFile)
	tmp, err := os.CreateTemp(dir, ManifestFile+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary manifest")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write temporary manifest")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close temporary manifest")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to rename temporary manifest")
	}
	return nil
}
