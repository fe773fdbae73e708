// Package anthropic implements the model client on Anthropic's Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = string(anthropic.ModelClaudeSonnet4_20250514)

// Client talks to Claude.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retry     config.RetryConfig
	usage     llmtypes.UsageCounter
}

// New creates a client from cfg. opts are appended to the SDK options,
// e.g. option.WithBaseURL in tests.
func New(cfg config.LLMConfig, opts ...option.RequestOption) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}

	// retries go through retry-go so they are logged like every other service call
	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.AnthropicAPIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.AnthropicAPIKey))
	}
	clientOpts = append(clientOpts, opts...)

	return &Client{
		client:    anthropic.NewClient(clientOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
	}
}

// Model returns the model name in use.
func (c *Client) Model() string {
	return c.model
}

// Usage returns the tokens consumed so far.
func (c *Client) Usage() llmtypes.Usage {
	return c.usage.Usage()
}

// Decide sends a tool-enabled request.
func (c *Client) Decide(ctx context.Context, req llmtypes.DecideRequest) (llmtypes.Response, error) {
	params := c.params(req.System, req.Prompt)
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
		// one decision per turn; only the first tool call is ever acted on
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{
			DisableParallelToolUse: anthropic.Bool(true),
		}}
		if req.ForceTool {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{
				DisableParallelToolUse: anthropic.Bool(true),
			}}
		}
	}

	msg, err := c.send(ctx, params)
	if err != nil {
		return llmtypes.Response{}, err
	}
	return toResponse(msg), nil
}

// Complete sends a request without tools and returns the text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.send(ctx, c.params(system, prompt))
	if err != nil {
		return "", err
	}
	return toResponse(msg).Text, nil
}

func (c *Client) params(system, prompt string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (c *Client) send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var msg *anthropic.Message
	err := telemetry.WithSpan(ctx, "llm.anthropic", func(ctx context.Context) error {
		return retry.Do(func() error {
			var err error
			msg, err = c.client.Messages.New(ctx, params)
			return err
		}, c.retry.Options(ctx, isRetryableError, func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.retry.Attempts).
				Warn("retrying Anthropic API call")
		})...)
	}, attribute.String("model", c.model))
	if err != nil {
		return nil, errors.Wrap(err, "error sending message to Anthropic")
	}

	c.usage.Record(llmtypes.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	})
	return msg, nil
}

func toResponse(msg *anthropic.Message) llmtypes.Response {
	var (
		resp  llmtypes.Response
		texts []string
	)
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			texts = append(texts, variant.Text)
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, llmtypes.ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: json.RawMessage(variant.JSON.Input.Raw()),
			})
		}
	}
	resp.Text = strings.Join(texts, "\n")
	resp.Usage = llmtypes.Usage{InputTokens: msg.Usage.InputTokens, OutputTokens: msg.Usage.OutputTokens}
	return resp
}

func toAnthropicTools(tools []llmtypes.ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Schema.Properties,
				},
			},
		}
	}
	return out
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}
