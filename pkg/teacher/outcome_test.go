package teacher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/llm"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

func toolCall(t *testing.T, name string, input any) llmtypes.ToolCall {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return llmtypes.ToolCall{ID: "call_1", Name: name, Input: raw}
}

func TestDecodeResponse(t *testing.T) {
	complete := toolCall(t, llm.ToolCompleteTask, llm.CompleteTaskInput{Summary: "done", Solution: "```bash\necho ok\n```"})
	gap := toolCall(t, llm.ToolRequestDocumentation, llm.RequestDocumentationInput{SearchQuery: "example client auth", Reason: "no auth docs"})

	out := DecodeResponse(llmtypes.Response{ToolCalls: []llmtypes.ToolCall{complete}})
	assert.Equal(t, OutcomeComplete, out.Kind)
	assert.Equal(t, llm.ToolCompleteTask, out.Marker)
	assert.Equal(t, "done", out.Summary)
	assert.Contains(t, out.Solution, "echo ok")

	out = DecodeResponse(llmtypes.Response{Text: "let me check", ToolCalls: []llmtypes.ToolCall{gap}})
	assert.Equal(t, OutcomeGap, out.Kind)
	assert.Equal(t, "example client auth", out.GapQuery)
	assert.Equal(t, "no auth docs", out.Reason)
	assert.Contains(t, out.Raw, "let me check")
	assert.Contains(t, out.Raw, llm.ToolRequestDocumentation)

	tests := []struct {
		name   string
		resp   llmtypes.Response
		detail string
	}{
		{"no tool call", llmtypes.Response{Text: "TASK_COMPLETE: done"}, "exactly one tool call, got 0"},
		{"two tool calls", llmtypes.Response{ToolCalls: []llmtypes.ToolCall{complete, gap}}, "got 2"},
		{"unknown tool", llmtypes.Response{ToolCalls: []llmtypes.ToolCall{{Name: "bash", Input: json.RawMessage(`{}`)}}}, `unknown tool "bash"`},
		{"bad input", llmtypes.Response{ToolCalls: []llmtypes.ToolCall{{Name: llm.ToolCompleteTask, Input: json.RawMessage(`{"solution":`)}}}, "invalid complete_task input"},
		{"empty solution", llmtypes.Response{ToolCalls: []llmtypes.ToolCall{toolCall(t, llm.ToolCompleteTask, llm.CompleteTaskInput{Summary: "x"})}}, "without a solution"},
		{"empty query", llmtypes.Response{ToolCalls: []llmtypes.ToolCall{toolCall(t, llm.ToolRequestDocumentation, llm.RequestDocumentationInput{Reason: "x"})}}, "without a search query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DecodeResponse(tt.resp)
			assert.Equal(t, OutcomeUnparseable, out.Kind)
			assert.Contains(t, out.Detail, tt.detail)
		})
	}
}

func TestDecodeVerdict(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		kind  OutcomeKind
		query string
	}{
		{"complete", "COMPLETE\nThe solution covers every step.", OutcomeComplete, ""},
		{"complete in bold", "**COMPLETE**", OutcomeComplete, ""},
		{"incomplete", "INCOMPLETE: example client retry configuration\nThe retry options are guessed.", OutcomeGap, "example client retry configuration"},
		{"incomplete in bold", "**INCOMPLETE**: example client proxy settings", OutcomeGap, "example client proxy settings"},
		{"verdict after preamble", "Reviewing the solution.\n\nAMBIGUOUS", OutcomeAmbiguous, ""},
		{"lowercase is not a verdict", "complete", OutcomeUnparseable, ""},
		{"completed is not complete", "COMPLETED the review", OutcomeUnparseable, ""},
		{"incomplete without query", "INCOMPLETE", OutcomeUnparseable, ""},
		{"incomplete with empty query", "INCOMPLETE:   ", OutcomeUnparseable, ""},
		{"no verdict", "Looks good to me.", OutcomeUnparseable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DecodeVerdict(tt.text)
			assert.Equal(t, tt.kind, out.Kind, out.Detail)
			assert.Equal(t, tt.query, out.GapQuery)
		})
	}
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "complete", OutcomeComplete.String())
	assert.Equal(t, "gap", OutcomeGap.String())
	assert.Equal(t, "ambiguous", OutcomeAmbiguous.String())
	assert.Equal(t, "unparseable", OutcomeUnparseable.String())
}
