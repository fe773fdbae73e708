package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
)

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"configure", "cobra", "subcommands", "go"}, Keywords("How to configure Cobra subcommands in Go?"))
	assert.Equal(t, []string{"deploy", "next.js", "app", "vercel"}, Keywords("Deploy a Next.js app to Vercel"))
	assert.Empty(t, Keywords("how to do it"))
}

func TestBootstrapQueries(t *testing.T) {
	assert.Equal(t, []string{
		"configure cobra subcommands go official documentation",
		"configure cobra subcommands go documentation",
		"configure cobra subcommands go",
		"configure cobra subcommands",
	}, bootstrapQueries([]string{"configure", "cobra", "subcommands", "go"}))

	assert.Len(t, bootstrapQueries([]string{"cobra"}), 3)
}

func TestIsContentURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://twitter.com/", false},
		{"https://www.linkedin.com", false},
		{"https://twitter.com/spf13/status/1", true},
		{"https://example.com/login", false},
		{"https://example.com/users/sign-up/", false},
		{"https://api.example.com/v1/users", false},
		{"https://example.com/v2/", false},
		{"https://example.com/v2/docs/intro", true},
		{"https://api.example.com/reference", true},
		{"https://cobra.dev/", true},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, isContentURL(tt.url))
		})
	}
}

func TestNormalizeGitHub(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://github.com/spf13/cobra", "https://github.com/spf13/cobra", true},
		{"https://github.com/spf13/cobra/issues/12", "https://github.com/spf13/cobra", true},
		{"https://github.com/spf13/cobra/blob/main/command.go", "https://github.com/spf13/cobra", true},
		{"https://github.com/spf13/cobra/tree/main/site/content/docs", "https://github.com/spf13/cobra/tree/main/site/content/docs", true},
		{"https://github.com/spf13/cobra/security/advisories/GHSA-1", "https://github.com/spf13/cobra/security/advisories", true},
		{"https://github.com/spf13/cobra/security", "https://github.com/spf13/cobra/security", true},
		{"https://github.com/spf13/cobra/wiki/Home", "https://github.com/spf13/cobra/wiki/Home", true},
		{"https://github.com/spf13", "", false},
		{"https://github.com/settings/profile", "", false},
		{"https://github.com/marketplace/actions/foo", "", false},
		{"https://github.com/sponsors/spf13", "", false},
		{"https://cobra.dev/docs", "https://cobra.dev/docs", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := normalizeGitHub(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDiscoverWithoutSeed(t *testing.T) {
	svc := &fakeService{
		searches: map[string][]firecrawl.SearchItem{
			// the most specific query finds nothing and the cascade moves on
			"cobra subcommands documentation": {
				{URL: "https://twitter.com/"},
				{URL: "https://github.com/spf13/cobra/issues/1"},
				{URL: "https://cobra.dev/docs/"},
				{URL: "https://github.com/settings"},
				{URL: "https://stackoverflow.com/questions/1/cobra"},
			},
		},
		maps: map[string][]firecrawl.Link{
			"https://cobra.dev/docs/":        {{URL: "https://cobra.dev/docs/subcommands"}},
			"https://github.com/spf13/cobra": {{URL: "https://github.com/spf13/cobra/wiki"}},
		},
	}

	d := New(svc, config.DiscoveryConfig{MaxSeeds: 2})
	got, err := d.DiscoverWithoutSeed(context.Background(), "cobra subcommands")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cobra subcommands official documentation",
		"cobra subcommands documentation",
		"cobra subcommands documentation tutorial",
		"cobra subcommands documentation tutorial",
	}, svc.searchCalls)
	// tier 1 candidates are seeded first
	assert.Equal(t, []string{"https://cobra.dev/docs/", "https://github.com/spf13/cobra"}, svc.mapCalls)

	urls := map[string]bool{}
	for _, s := range got {
		urls[s.URL] = true
	}
	assert.True(t, urls["https://cobra.dev/docs/subcommands"])
	assert.True(t, urls["https://github.com/spf13/cobra/wiki"])
	assert.False(t, urls["https://stackoverflow.com/questions/1/cobra"])
	assert.Equal(t, 1, got[0].Priority)
}

func TestDiscoverWithoutSeedFailures(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		svc := &fakeService{searches: map[string][]firecrawl.SearchItem{
			"cobra": {{URL: "https://example.com/login"}},
		}}
		_, err := New(svc, config.DiscoveryConfig{}).DiscoverWithoutSeed(context.Background(), "cobra")
		require.Error(t, err)
		assert.True(t, forgeerr.Is(err, forgeerr.KindDiscovery))
	})

	t.Run("no seed yields sources", func(t *testing.T) {
		svc := &fakeService{searches: map[string][]firecrawl.SearchItem{
			"cobra official documentation": {{URL: "https://cobra.dev/"}},
		}}
		_, err := New(svc, config.DiscoveryConfig{}).DiscoverWithoutSeed(context.Background(), "cobra")
		require.Error(t, err)
		assert.True(t, forgeerr.Is(err, forgeerr.KindDiscovery))
		assert.Contains(t, err.Error(), "no seed yielded sources")
	})

	t.Run("only stop-words", func(t *testing.T) {
		_, err := New(&fakeService{}, config.DiscoveryConfig{}).DiscoverWithoutSeed(context.Background(), "how to do it")
		assert.True(t, forgeerr.Is(err, forgeerr.KindDiscovery))
	})
}
