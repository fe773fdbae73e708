package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/config"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

const toolCallResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1760000000,
  "model": "gpt-4.1",
  "choices": [{
    "index": 0,
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "complete_task", "arguments": "{\"summary\":\"done\",\"solution\":\"run it\"}"}
      }]
    },
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 80, "completion_tokens": 20, "total_tokens": 100}
}`

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:      config.ProviderOpenAI,
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: baseURL + "/v1",
		Retry:         config.RetryConfig{Attempts: 3, InitialDelay: 1, MaxDelay: 5, BackoffType: "fixed"},
	}
}

func TestDecide(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, toolCallResponse)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	resp, err := c.Decide(context.Background(), llmtypes.DecideRequest{
		System:    "system prompt",
		Prompt:    "do the task",
		Tools:     []llmtypes.ToolDef{{Name: "complete_task", Description: "finish", Schema: &jsonschema.Schema{Type: "object"}}},
		ForceTool: true,
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "complete_task", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"summary":"done","solution":"run it"}`, string(resp.ToolCalls[0].Input))
	assert.Equal(t, int64(100), c.Usage().TotalTokens())

	assert.Equal(t, "required", body["tool_choice"])
	assert.Equal(t, false, body["parallel_tool_calls"])
	assert.Equal(t, DefaultModel, body["model"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		io.WriteString(w, `{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"AMBIGUOUS"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":1}}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	text, err := c.Complete(context.Background(), "", "analyse")
	require.NoError(t, err)
	assert.Equal(t, "AMBIGUOUS", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestIsReasoningModel(t *testing.T) {
	assert.True(t, IsReasoningModel("o3-mini"))
	assert.True(t, IsReasoningModel("gpt-5"))
	assert.False(t, IsReasoningModel("gpt-4.1"))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, isRetryableError(errors.Wrap(&openai.APIError{HTTPStatusCode: 502}, "wrapped")))
	assert.False(t, isRetryableError(&openai.APIError{HTTPStatusCode: 401}))
	assert.True(t, isRetryableError(&openai.RequestError{HTTPStatusCode: 0, Err: io.ErrUnexpectedEOF}))
	assert.False(t, isRetryableError(context.DeadlineExceeded))
}
