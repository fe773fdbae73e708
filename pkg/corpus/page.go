package corpus

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillforge/pkg/sources"
)

// PageInfo is a manifest entry describing one page file.
type PageInfo struct {
	Filename      string         `json:"filename"`
	URL           string         `json:"url"`
	Title         string         `json:"title,omitempty"`
	Origin        sources.Origin `json:"origin"`
	Priority      int            `json:"priority"`
	Tier          sources.Tier   `json:"tier"`
	TokenEstimate int            `json:"token_estimate"`
}

// pageHeader is the YAML front matter written at the top of every page.
type pageHeader struct {
	URL       string         `yaml:"url"`
	Title     string         `yaml:"title"`
	Origin    sources.Origin `yaml:"origin"`
	Priority  int            `yaml:"priority"`
	Tier      sources.Tier   `yaml:"tier"`
	CrawledAt string         `yaml:"crawled_at"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(text string, maxLen int) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}

// pageFilename derives the page file name from its ordinal and URL.
func pageFilename(index int, rawURL string) string {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		key = u.Host + u.Path
	}
	slug := slugify(key, 60)
	if slug == "" {
		slug = "page"
	}
	return fmt.Sprintf("%03d_%s.md", index, slug)
}

func estimateTokens(text string) int {
	return len(text) / 4
}

// writePage writes markdown with its front matter and returns the manifest entry.
func writePage(dir string, index int, src sources.Source, markdown string, now time.Time) (PageInfo, error) {
	info := PageInfo{
		Filename:      pageFilename(index, src.URL),
		URL:           src.URL,
		Title:         src.Title,
		Origin:        src.Origin,
		Priority:      src.Priority,
		Tier:          src.Tier,
		TokenEstimate: estimateTokens(markdown),
	}

	title := src.Title
	if title == "" {
		title = "Untitled"
	}
	header, err := yaml.Marshal(pageHeader{
		URL:       src.URL,
		Title:     title,
		Origin:    src.Origin,
		Priority:  src.Priority,
		Tier:      src.Tier,
		CrawledAt: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return PageInfo{}, errors.Wrap(err, "failed to encode page front matter")
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.WriteString(markdown)

	if err := os.WriteFile(filepath.Join(dir, info.Filename), buf.Bytes(), 0o644); err != nil {
		return PageInfo{}, errors.Wrapf(err, "failed to write page %s", info.Filename)
	}
	return info, nil
}

// Page is a page file read back from disk.
type Page struct {
	URL   string
	Title string
	Body  string
}

// ReadPage reads a page file, parsing its front matter.
func ReadPage(path string) (*Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read page")
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	pctx := parser.NewContext()
	var buf bytes.Buffer
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse page")
	}

	page := &Page{Body: extractBody(string(content))}
	if fm := meta.Get(pctx); fm != nil {
		page.URL, _ = fm["url"].(string)
		page.Title, _ = fm["title"].(string)
	}
	return page, nil
}

// extractBody removes YAML front matter and returns the trimmed body.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return strings.TrimSpace(content)
	}

	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return strings.TrimSpace(content)
}
