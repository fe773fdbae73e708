// Package google implements the model client on Google's GenAI SDK, using
// the Gemini API backend.
package google

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-pro"

// Client talks to Gemini.
type Client struct {
	client    *genai.Client
	model     string
	maxTokens int
	retry     config.RetryConfig
	usage     llmtypes.UsageCounter
}

// New creates a client from cfg. baseURL overrides the API endpoint when set.
func New(ctx context.Context, cfg config.LLMConfig, baseURL string) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}

	clientConfig := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.GeminiAPIKey,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}

	return &Client{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
	}, nil
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
	cfg := c.generateConfig(req.System)
	if len(req.Tools) > 0 {
		cfg.Tools = toGoogleTools(req.Tools)
		if req.ForceTool {
			cfg.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny},
			}
		}
	}

	result, err := c.send(ctx, req.Prompt, cfg)
	if err != nil {
		return llmtypes.Response{}, err
	}
	return toResponse(result), nil
}

// Complete sends a request without tools and returns the text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	result, err := c.send(ctx, prompt, c.generateConfig(system))
	if err != nil {
		return "", err
	}
	return toResponse(result).Text, nil
}

func (c *Client) generateConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.maxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

func (c *Client) send(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var result *genai.GenerateContentResponse
	err := telemetry.WithSpan(ctx, "llm.google", func(ctx context.Context) error {
		return retry.Do(func() error {
			var err error
			result, err = c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
			return err
		}, c.retry.Options(ctx, isRetryableError, func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.retry.Attempts).
				Warn("retrying Google GenAI API call")
		})...)
	}, attribute.String("model", c.model))
	if err != nil {
		return nil, errors.Wrap(err, "error sending message to Google GenAI")
	}

	if result.UsageMetadata != nil {
		c.usage.Record(llmtypes.Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		})
	}
	return result, nil
}

func toResponse(result *genai.GenerateContentResponse) llmtypes.Response {
	var (
		resp  llmtypes.Response
		texts []string
	)
	if result.UsageMetadata != nil {
		resp.Usage = llmtypes.Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return resp
	}

	for _, part := range result.Candidates[0].Content.Parts {
		switch {
		case part.Thought:
			continue
		case part.FunctionCall != nil:
			args, _ := json.Marshal(part.FunctionCall.Args)
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			resp.ToolCalls = append(resp.ToolCalls, llmtypes.ToolCall{
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: args,
			})
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}
	resp.Text = strings.Join(texts, "")
	return resp
}

// toGoogleTools groups every declaration under a single Tool, as GenAI expects.
func toGoogleTools(tools []llmtypes.ToolDef) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertToGoogleSchema(tool.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertToGoogleSchema(schema *jsonschema.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        convertSchemaType(schema.Type),
		Description: schema.Description,
		Required:    schema.Required,
	}
	if schema.Properties != nil {
		out.Properties = make(map[string]*genai.Schema)
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = convertToGoogleSchema(pair.Value)
		}
	}
	if schema.Items != nil {
		out.Items = convertToGoogleSchema(schema.Items)
	}
	return out
}

func convertSchemaType(schemaType string) genai.Type {
	switch strings.ToLower(schemaType) {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"internal error",
	"quota exceeded",
	"rate limit",
	"too many requests",
	"resource_exhausted",
	"unavailable",
	"error 429",
	"error 500",
	"error 502",
	"error 503",
	"error 504",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
