// Package sources defines documentation sources and the tiered classifier
// that ranks them by authority.
package sources

import "strings"

// Origin records how a source was found.
type Origin string

const (
	OriginSeed     Origin = "seed"
	OriginMapped   Origin = "mapped"
	OriginSearched Origin = "searched"
)

// Tier ranks documentation authority: 1 official docs, 2 technical hubs,
// 3 low-confidence community content.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// Source is a candidate documentation URL with its classification.
type Source struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Origin   Origin `json:"origin"`
	Priority int    `json:"priority"`
	Tier     Tier   `json:"tier"`
	// Content is the prefetched page body, if the source came with one.
	Content string `json:"-"`
}

// HasContent reports whether the source carries a non-blank prefetched page
// body.
func (s Source) HasContent() bool {
	return strings.TrimSpace(s.Content) != ""
}

// NewSeed returns the Tier-1 source for a seed URL.
func NewSeed(url string) Source {
	return Source{
		URL:      url,
		Origin:   OriginSeed,
		Tier:     Tier1,
		Priority: Priority(Tier1, OriginSeed),
	}
}

// New classifies url and returns a source for the given origin.
func New(url, title string, origin Origin, content string) Source {
	tier := Classify(url, origin == OriginSeed)
	return Source{
		URL:      url,
		Title:    title,
		Origin:   origin,
		Tier:     tier,
		Priority: Priority(tier, origin),
		Content:  content,
	}
}

// WithTier returns a copy of s reclassified to tier.
func (s Source) WithTier(tier Tier) Source {
	s.Tier = tier
	s.Priority = Priority(tier, s.Origin)
	return s
}
