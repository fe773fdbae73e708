// Package firecrawl is a client for the Firecrawl v1 REST API covering the
// map, crawl and search endpoints skillforge discovers documentation with.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/avast/retry-go/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/version"
)

// Client calls the Firecrawl API. It paces requests with a token bucket and
// retries rate-limit and server errors.
type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	limiter      *rate.Limiter
	retry        config.RetryConfig
	pollInterval time.Duration
	converter    *md.Converter
}

// New returns a client for cfg.
func New(cfg config.FirecrawlConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg.Attempts == 0 {
		retryCfg = config.DefaultRetryConfig
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		http:         &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		retry:        retryCfg,
		pollInterval: poll,
		converter:    md.NewConverter("", true, nil),
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// do sends one JSON request and decodes the JSON response into out, retrying
// transient failures.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}

	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return c.send(ctx, method, target, payload, out)
		},
		c.retry.Options(ctx, isRetryableError, func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.retry.Attempts).
				WithField("path", path).
				Warn("retrying firecrawl request")
		})...,
	)
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", version.Get().UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &envelope)
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// document is a scraped page as returned by crawl and search.
type document struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Markdown    string         `json:"markdown"`
	HTML        string         `json:"html"`
	RawMetadata map[string]any `json:"metadata"`
}

func (c *Client) metadata(ctx context.Context, raw map[string]any) Metadata {
	var meta Metadata
	if raw == nil {
		return meta
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
	})
	if err == nil {
		err = decoder.Decode(raw)
	}
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to decode page metadata")
	}
	return meta
}

// markdown returns the document's markdown, converting its HTML when the
// service returned none.
func (c *Client) markdown(ctx context.Context, doc document) string {
	if strings.TrimSpace(doc.Markdown) != "" {
		return doc.Markdown
	}
	if strings.TrimSpace(doc.HTML) == "" {
		return ""
	}
	converted, err := c.converter.ConvertString(doc.HTML)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to convert HTML to markdown")
		return ""
	}
	return converted
}

func scrapeOptions(formats []string, stealth bool) map[string]any {
	opts := map[string]any{"formats": formats}
	if stealth {
		opts["proxy"] = "stealth"
	}
	return opts
}
