package corpus

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jingkaihe/skillforge/pkg/sources"
)

var (
	docsHostHints = []string{"docs.", "developer.", "developers.", "learn.", "readthedocs", "gitbook", "pkg.go.dev", "wiki."}

	nonContentSegments = map[string]bool{
		"login": true, "signin": true, "sign-in": true, "logout": true,
		"signup": true, "sign-up": true, "register": true, "auth": true,
		"oauth": true, "account": true, "accounts": true, "settings": true,
	}

	versionedAPIRoot = regexp.MustCompile(`^(/api)?/v\d+(/|$)`)
)

func looksLikeDocsHost(host string) bool {
	for _, hint := range docsHostHints {
		if strings.Contains(host, hint) {
			return true
		}
	}
	return false
}

// isCrawlable reports whether rawURL is worth crawling: not a bare marketing
// domain, not an auth page, not a raw versioned API endpoint.
func isCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimRight(strings.ToLower(u.Path), "/")

	if path == "" {
		return looksLikeDocsHost(host)
	}
	for _, seg := range strings.Split(path, "/") {
		if nonContentSegments[seg] {
			return false
		}
	}
	if versionedAPIRoot.MatchString(path) {
		return strings.Contains(path, "docs") || strings.Contains(path, "reference")
	}
	return true
}

// domainCrawl is one planned crawl covering every seed/mapped source of a domain.
type domainCrawl struct {
	domain       string
	startURL     string
	seedURL      string
	tier         sources.Tier
	includePaths []string
}

// planCrawls groups crawlable seed and mapped sources by domain, in the order
// domains first appear. srcs is expected sorted by priority.
func planCrawls(srcs []sources.Source) []*domainCrawl {
	var (
		plans    []*domainCrawl
		byDomain = map[string]*domainCrawl{}
		best     = map[string]int{}
		segSeen  = map[string]map[string]bool{}
	)

	for _, s := range srcs {
		if s.Origin != sources.OriginSeed && s.Origin != sources.OriginMapped {
			continue
		}
		if !isCrawlable(s.URL) {
			continue
		}
		domain := sources.Domain(s.URL)
		if domain == "" {
			continue
		}

		plan, ok := byDomain[domain]
		if !ok {
			plan = &domainCrawl{domain: domain, startURL: s.URL, tier: s.Tier}
			byDomain[domain] = plan
			best[domain] = s.Priority
			segSeen[domain] = map[string]bool{}
			plans = append(plans, plan)
		}
		if s.Priority < best[domain] {
			best[domain] = s.Priority
			plan.startURL = s.URL
		}
		if s.Tier < plan.tier {
			plan.tier = s.Tier
		}
		if s.Origin == sources.OriginSeed && plan.seedURL == "" {
			plan.seedURL = s.URL
		}

		if s.Origin == sources.OriginMapped {
			if seg := firstSegment(s.URL); seg != "" && !segSeen[domain][seg] {
				segSeen[domain][seg] = true
				plan.includePaths = append(plan.includePaths, "^/"+regexp.QuoteMeta(seg)+"/.*")
			}
		}
	}
	return plans
}

func firstSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}
