package discovery

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/sources"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "with": true, "by": true,
	"from": true, "using": true, "use": true, "how": true, "do": true, "i": true,
	"my": true, "into": true, "is": true, "are": true, "be": true, "it": true,
	"this": true, "that": true, "via": true, "at": true, "as": true, "your": true,
}

// Keywords lower-cases task, strips punctuation and drops stop-words.
func Keywords(task string) []string {
	fields := strings.FieldsFunc(strings.ToLower(task), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-' && r != '_'
	})

	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".-_")
		if f == "" || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// bootstrapQueries returns the query cascade from most to least specific.
func bootstrapQueries(keywords []string) []string {
	joined := strings.Join(keywords, " ")
	queries := []string{
		joined + " official documentation",
		joined + " documentation",
		joined,
	}
	if len(keywords) > 3 {
		queries = append(queries, strings.Join(keywords[:3], " "))
	}
	return queries
}

var (
	socialHosts = map[string]bool{
		"twitter.com": true, "x.com": true, "facebook.com": true, "instagram.com": true,
		"linkedin.com": true, "youtube.com": true, "tiktok.com": true, "discord.com": true,
		"discord.gg": true, "t.me": true,
	}
	authSegments = map[string]bool{
		"login": true, "signin": true, "sign-in": true, "signup": true, "sign-up": true,
		"register": true, "auth": true, "oauth": true, "logout": true, "account": true,
	}
	versionedAPIPath = regexp.MustCompile(`^/v\d+(/|$)`)

	githubSkipOwners = map[string]bool{
		"settings": true, "marketplace": true, "sponsors": true, "login": true, "join": true,
		"logout": true, "features": true, "pricing": true, "explore": true, "topics": true,
		"notifications": true, "orgs": true, "apps": true,
	}
)

func mentionsDocs(path string) bool {
	return strings.Contains(path, "doc") || strings.Contains(path, "reference")
}

// isContentURL rejects URL shapes that never hold documentation.
func isContentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))

	if socialHosts[host] && path == "" {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if authSegments[seg] {
			return false
		}
	}
	if versionedAPIPath.MatchString(path) && !mentionsDocs(path) {
		return false
	}
	if strings.HasPrefix(host, "api.") && !mentionsDocs(path) {
		return false
	}
	return true
}

// normalizeGitHub maps GitHub URLs to a crawlable form. It returns false for
// GitHub pages that are not project content.
func normalizeGitHub(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return rawURL, true
	}

	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) < 2 || githubSkipOwners[strings.ToLower(segs[0])] {
		return "", false
	}

	root := "https://github.com/" + segs[0] + "/" + segs[1]
	if len(segs) == 2 {
		return root, true
	}

	switch strings.ToLower(segs[2]) {
	case "security":
		if len(segs) > 3 && strings.ToLower(segs[3]) == "advisories" {
			return root + "/security/advisories", true
		}
		return root + "/security", true
	case "wiki":
		return "https://github.com/" + strings.Join(segs, "/"), true
	case "blob", "tree":
		if mentionsDocs(strings.ToLower(strings.Join(segs[3:], "/"))) {
			return "https://github.com/" + strings.Join(segs, "/"), true
		}
		return root, true
	default:
		return root, true
	}
}

// DiscoverWithoutSeed bootstraps seed URLs for task through a cascade of
// searches and runs Discover on the best MaxSeeds of them.
func (d *Discoverer) DiscoverWithoutSeed(ctx context.Context, task string) ([]sources.Source, error) {
	var result []sources.Source
	err := telemetry.WithSpan(ctx, "discovery.discover_without_seed", func(ctx context.Context) error {
		var err error
		result, err = d.discoverWithoutSeed(ctx, task)
		return err
	}, attribute.String("task", task))
	return result, err
}

func (d *Discoverer) discoverWithoutSeed(ctx context.Context, task string) ([]sources.Source, error) {
	log := logger.G(ctx).WithField("task", task)

	keywords := Keywords(task)
	if len(keywords) == 0 {
		return nil, forgeerr.New(forgeerr.KindDiscovery, "no searchable keywords in task %q", task)
	}

	candidates := d.seedCandidates(ctx, keywords)
	if len(candidates) == 0 {
		return nil, forgeerr.New(forgeerr.KindDiscovery, "no documentation seed found for %q", task)
	}

	var (
		found  []sources.Source
		errs   *multierror.Error
		seeded int
	)
	for _, seed := range candidates {
		if seeded == d.cfg.MaxSeeds {
			break
		}
		seeded++

		srcs, err := d.Discover(ctx, task, seed)
		if err != nil {
			log.WithError(err).WithField("seed_url", seed).Warn("seed discovery failed")
			errs = multierror.Append(errs, err)
			continue
		}
		found = append(found, srcs...)
	}

	if len(found) == 0 {
		if err := errs.ErrorOrNil(); err != nil {
			return nil, forgeerr.Wrap(forgeerr.KindDiscovery, err, "no seed yielded sources for %q", task)
		}
		return nil, forgeerr.New(forgeerr.KindDiscovery, "no seed yielded sources for %q", task)
	}
	return sources.Dedupe(found), nil
}

// seedCandidates runs the query cascade until enough candidates survive
// filtering, returning them best tier first.
func (d *Discoverer) seedCandidates(ctx context.Context, keywords []string) []string {
	log := logger.G(ctx)

	type candidate struct {
		url  string
		tier sources.Tier
	}
	var (
		out  []candidate
		seen = map[string]bool{}
	)

	for _, query := range bootstrapQueries(keywords) {
		res, err := d.svc.Search(ctx, query, firecrawl.SearchOptions{Limit: d.cfg.SearchLimit})
		if err != nil {
			log.WithError(err).WithField("query", query).Debug("seed search failed")
			continue
		}
		for _, item := range res.Results {
			if !isContentURL(item.URL) {
				continue
			}
			normalized, ok := normalizeGitHub(item.URL)
			if !ok {
				continue
			}
			key := sources.NormalizeURL(normalized)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, candidate{url: normalized, tier: sources.Classify(normalized, false)})
		}
		if len(out) >= d.cfg.MaxSeeds {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].tier < out[j].tier })

	urls := make([]string, len(out))
	for i, c := range out {
		urls[i] = c.url
	}
	return urls
}
