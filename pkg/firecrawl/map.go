package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

type mapRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit,omitempty"`
}

type mapResponse struct {
	Success bool              `json:"success"`
	Links   []json.RawMessage `json:"links"`
}

// Map lists the URLs of the site at url, up to limit.
func (c *Client) Map(ctx context.Context, url string, limit int) ([]Link, error) {
	var resp mapResponse
	if err := c.do(ctx, http.MethodPost, "/v1/map", mapRequest{URL: url, Limit: limit}, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to map %s", url)
	}

	links := make([]Link, 0, len(resp.Links))
	for _, raw := range resp.Links {
		link, ok := decodeLink(raw)
		if !ok {
			continue
		}
		links = append(links, link)
	}

	if len(links) == 0 {
		return nil, errors.Wrapf(ErrNoResults, "map returned no URLs for %s", url)
	}

	logger.G(ctx).WithField("url", url).WithField("links", len(links)).Debug("mapped site")
	return links, nil
}

// decodeLink accepts both the plain-string and object link shapes.
func decodeLink(raw json.RawMessage) (Link, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Link{URL: s}, s != ""
	}
	var link Link
	if err := json.Unmarshal(raw, &link); err != nil {
		return Link{}, false
	}
	return link, link.URL != ""
}
