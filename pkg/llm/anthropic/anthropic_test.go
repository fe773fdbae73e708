package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/config"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

const toolUseResponse = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [
    {"type": "text", "text": "Looking at the docs."},
    {"type": "tool_use", "id": "toolu_01", "name": "request_documentation", "input": {"search_query": "cobra persistent flags", "reason": "flag scoping unclear"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 120, "output_tokens": 30}
}`

const textResponse = `{
  "id": "msg_02",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "COMPLETE"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 50, "output_tokens": 2}
}`

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:        config.ProviderAnthropic,
		AnthropicAPIKey: "test-key",
		Retry:           config.RetryConfig{Attempts: 3, InitialDelay: 1, MaxDelay: 5, BackoffType: "fixed"},
	}
}

func TestDecide(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, toolUseResponse)
	}))
	defer srv.Close()

	c := New(testConfig(), option.WithBaseURL(srv.URL))
	schema := &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	schema.Properties.Set("search_query", &jsonschema.Schema{Type: "string"})

	resp, err := c.Decide(context.Background(), llmtypes.DecideRequest{
		System:    "system prompt",
		Prompt:    "do the task",
		Tools:     []llmtypes.ToolDef{{Name: "request_documentation", Description: "ask for docs", Schema: schema}},
		ForceTool: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Looking at the docs.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "request_documentation", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"search_query": "cobra persistent flags", "reason": "flag scoping unclear"}`, string(resp.ToolCalls[0].Input))
	assert.Equal(t, llmtypes.Usage{InputTokens: 120, OutputTokens: 30}, c.Usage())

	assert.Equal(t, DefaultModel, body["model"])
	toolChoice := body["tool_choice"].(map[string]any)
	assert.Equal(t, "any", toolChoice["type"])
	assert.Equal(t, true, toolChoice["disable_parallel_tool_use"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "request_documentation", tools[0].(map[string]any)["name"])
}

func TestDecideAutoToolChoice(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, toolUseResponse)
	}))
	defer srv.Close()

	c := New(testConfig(), option.WithBaseURL(srv.URL))
	_, err := c.Decide(context.Background(), llmtypes.DecideRequest{
		Prompt: "do the task",
		Tools:  []llmtypes.ToolDef{{Name: "request_documentation", Schema: &jsonschema.Schema{Type: "object"}}},
	})
	require.NoError(t, err)

	toolChoice := body["tool_choice"].(map[string]any)
	assert.Equal(t, "auto", toolChoice["type"])
	assert.Equal(t, true, toolChoice["disable_parallel_tool_use"])
}

func TestCompleteRetriesOverloaded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
			return
		}
		io.WriteString(w, textResponse)
	}))
	defer srv.Close()

	c := New(testConfig(), option.WithBaseURL(srv.URL))
	text, err := c.Complete(context.Background(), "", "is it complete?")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", text)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(52), c.Usage().TotalTokens())
}

func TestCompleteDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	c := New(testConfig(), option.WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error sending message to Anthropic")
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(io.EOF))
}
