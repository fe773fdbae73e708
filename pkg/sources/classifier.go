package sources

import (
	"net/url"
	"strings"
)

// tierRule matches a URL by host suffix, host prefix, or path substring.
type tierRule struct {
	hostSuffix string
	hostPrefix string
	pathPart   string
}

func (r tierRule) matches(host, path string) bool {
	switch {
	case r.hostSuffix != "":
		return host == r.hostSuffix || strings.HasSuffix(host, "."+r.hostSuffix)
	case r.hostPrefix != "":
		return strings.HasPrefix(host, r.hostPrefix)
	case r.pathPart != "":
		return strings.Contains(path, r.pathPart)
	}
	return false
}

// Checked in order: tier 1, then tier 2, then tier 3.
var (
	tier1Rules = []tierRule{
		{hostPrefix: "docs."},
		{pathPart: "/docs/"},
		{pathPart: "/reference/"},
		{pathPart: "/api/"},
		{hostSuffix: "readthedocs.io"},
		{hostSuffix: "readthedocs.org"},
		{hostSuffix: "gitbook.io"},
		{hostSuffix: "docs.rs"},
		{hostSuffix: "pkg.go.dev"},
		{hostSuffix: "developer.mozilla.org"},
		{hostSuffix: "mintlify.app"},
	}
	tier2Rules = []tierRule{
		{hostSuffix: "github.com"},
		{hostSuffix: "gitlab.com"},
		{hostSuffix: "bitbucket.org"},
		{hostSuffix: "arxiv.org"},
		{hostSuffix: "paperswithcode.com"},
		{hostPrefix: "developer."},
		{hostPrefix: "developers."},
	}
	tier3Rules = []tierRule{
		{hostSuffix: "stackoverflow.com"},
		{hostSuffix: "stackexchange.com"},
		{hostSuffix: "superuser.com"},
		{hostSuffix: "reddit.com"},
		{hostSuffix: "quora.com"},
		{hostSuffix: "medium.com"},
		{hostSuffix: "dev.to"},
		{hostSuffix: "hashnode.dev"},
		{hostSuffix: "substack.com"},
		{hostSuffix: "blogspot.com"},
		{hostSuffix: "wordpress.com"},
	}
)

// Classify maps a URL to its authority tier. Seeds are always tier 1;
// unknown domains default to tier 2.
func Classify(rawURL string, isSeed bool) Tier {
	if isSeed {
		return Tier1
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Tier2
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.ToLower(u.Path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	for _, table := range []struct {
		tier  Tier
		rules []tierRule
	}{
		{Tier1, tier1Rules},
		{Tier2, tier2Rules},
		{Tier3, tier3Rules},
	} {
		for _, rule := range table.rules {
			if rule.matches(host, path) {
				return table.tier
			}
		}
	}

	return Tier2
}

var basePriority = map[Tier]int{
	Tier1: 1,
	Tier2: 4,
	Tier3: 7,
}

// Priority combines tier and origin into a sort key; lower sorts first.
// Seeds are always 1, mapped sources add 1 to the tier base and searched
// sources add 2.
func Priority(tier Tier, origin Origin) int {
	if origin == OriginSeed {
		return 1
	}

	base, ok := basePriority[tier]
	if !ok {
		base = basePriority[Tier2]
	}

	switch origin {
	case OriginMapped:
		return base + 1
	case OriginSearched:
		return base + 2
	default:
		return base
	}
}
