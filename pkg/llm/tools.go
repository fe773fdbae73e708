package llm

import (
	"github.com/invopop/jsonschema"

	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// Tool names offered to the model during a teacher attempt.
const (
	ToolCompleteTask         = "complete_task"
	ToolRequestDocumentation = "request_documentation"
)

// CompleteTaskInput is the input of the complete_task tool.
type CompleteTaskInput struct {
	Summary  string `json:"summary" jsonschema:"description=One paragraph summary of what the solution does"`
	Solution string `json:"solution" jsonschema:"description=The complete solution in markdown with fenced code blocks for all code and commands"`
}

// RequestDocumentationInput is the input of the request_documentation tool.
type RequestDocumentationInput struct {
	SearchQuery string `json:"search_query" jsonschema:"description=A specific web search query for the missing documentation"`
	Reason      string `json:"reason" jsonschema:"description=What information is missing from the documentation provided"`
}

// GenerateSchema generates a JSON schema for the given type
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// TeacherTools returns the two tools a teacher attempt must choose between.
func TeacherTools() []llmtypes.ToolDef {
	return []llmtypes.ToolDef{
		{
			Name:        ToolCompleteTask,
			Description: "Submit a complete, working solution to the task. Only call this when the documentation contains everything needed.",
			Schema:      GenerateSchema[CompleteTaskInput](),
		},
		{
			Name:        ToolRequestDocumentation,
			Description: "Request additional documentation when the provided documentation is missing something required to complete the task.",
			Schema:      GenerateSchema[RequestDocumentationInput](),
		},
	}
}
