// Package llm defines the contract between the teacher session and the model
// providers.
package llm

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolDef describes a tool the model may call.
type ToolDef struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// ToolCall is one tool invocation returned by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// DecideRequest is a single constrained model call.
type DecideRequest struct {
	System string
	Prompt string
	Tools  []ToolDef
	// ForceTool requires the model to answer with a tool call.
	ForceTool bool
}

// Response is the model's answer to a DecideRequest.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Client is a language model capable of tool calls and free-form completion.
type Client interface {
	// Decide sends a prompt with tools and returns the text and tool calls.
	Decide(ctx context.Context, req DecideRequest) (Response, error)
	// Complete sends a prompt without tools and returns the text answer.
	Complete(ctx context.Context, system, prompt string) (string, error)
	// Usage returns the tokens consumed so far.
	Usage() Usage
	// Model returns the model name in use.
	Model() string
}
