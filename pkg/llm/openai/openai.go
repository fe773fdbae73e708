// Package openai implements the model client on the OpenAI chat completions
// API and compatible endpoints.
package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4Dot1

var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// IsReasoningModel reports whether model takes max_completion_tokens
// instead of max_tokens.
func IsReasoningModel(model string) bool {
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Client talks to an OpenAI compatible chat completions endpoint.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	retry     config.RetryConfig
	usage     llmtypes.UsageCounter
}

// New creates a client from cfg.
func New(cfg config.LLMConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
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
	params := c.request(req.System, req.Prompt)
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
		// one decision per turn; only the first tool call is ever acted on
		params.ParallelToolCalls = false
		params.ToolChoice = "auto"
		if req.ForceTool {
			params.ToolChoice = "required"
		}
	}

	completion, err := c.send(ctx, params)
	if err != nil {
		return llmtypes.Response{}, err
	}
	return toResponse(completion), nil
}

// Complete sends a request without tools and returns the text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	completion, err := c.send(ctx, c.request(system, prompt))
	if err != nil {
		return "", err
	}
	return toResponse(completion).Text, nil
}

func (c *Client) request(system, prompt string) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if IsReasoningModel(c.model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
	}
	return req
}

func (c *Client) send(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var completion openai.ChatCompletionResponse
	err := telemetry.WithSpan(ctx, "llm.openai", func(ctx context.Context) error {
		return retry.Do(func() error {
			var err error
			completion, err = c.client.CreateChatCompletion(ctx, req)
			return err
		}, c.retry.Options(ctx, isRetryableError, func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.retry.Attempts).
				Warn("retrying OpenAI API call")
		})...)
	}, attribute.String("model", c.model))
	if err != nil {
		return openai.ChatCompletionResponse{}, errors.Wrap(err, "error sending message to OpenAI")
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("OpenAI returned no choices")
	}

	c.usage.Record(llmtypes.Usage{
		InputTokens:  int64(completion.Usage.PromptTokens),
		OutputTokens: int64(completion.Usage.CompletionTokens),
	})
	return completion, nil
}

func toResponse(completion openai.ChatCompletionResponse) llmtypes.Response {
	msg := completion.Choices[0].Message
	resp := llmtypes.Response{
		Text: msg.Content,
		Usage: llmtypes.Usage{
			InputTokens:  int64(completion.Usage.PromptTokens),
			OutputTokens: int64(completion.Usage.CompletionTokens),
		},
	}
	for _, call := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, llmtypes.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	return resp
}

func toOpenAITools(tools []llmtypes.ToolDef) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema,
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

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}
