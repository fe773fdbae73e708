package teacher

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/jingkaihe/skillforge/pkg/llm"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// OutcomeKind is the closed set of things a model answer can mean.
type OutcomeKind int

const (
	OutcomeUnparseable OutcomeKind = iota
	OutcomeComplete
	OutcomeGap
	OutcomeAmbiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeComplete:
		return "complete"
	case OutcomeGap:
		return "gap"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "unparseable"
	}
}

// Verdict tokens of the second-pass analysis.
const (
	VerdictComplete   = "COMPLETE"
	VerdictIncomplete = "INCOMPLETE"
	VerdictAmbiguous  = "AMBIGUOUS"
)

// Outcome is a decoded model answer.
type Outcome struct {
	Kind OutcomeKind
	// Marker is the tool name or verdict token the outcome was decoded from.
	Marker string

	Summary  string
	Solution string

	GapQuery string
	Reason   string

	// Detail explains why an answer was unparseable.
	Detail string
	// Raw is the answer text the outcome was decoded from.
	Raw string
}

func unparseable(raw, format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeUnparseable, Raw: raw, Detail: fmt.Sprintf(format, args...)}
}

// DecodeResponse decodes the tool-constrained first pass of an attempt. Any
// answer other than exactly one recognized, well-formed tool call is
// unparseable.
func DecodeResponse(resp llmtypes.Response) Outcome {
	raw := responseText(resp)
	if len(resp.ToolCalls) != 1 {
		return unparseable(raw, "expected exactly one tool call, got %d", len(resp.ToolCalls))
	}

	call := resp.ToolCalls[0]
	switch call.Name {
	case llm.ToolCompleteTask:
		var in llm.CompleteTaskInput
		if err := json.Unmarshal(call.Input, &in); err != nil {
			return unparseable(raw, "invalid %s input: %v", call.Name, err)
		}
		if strings.TrimSpace(in.Solution) == "" {
			return unparseable(raw, "%s called without a solution", call.Name)
		}
		return Outcome{
			Kind:     OutcomeComplete,
			Marker:   call.Name,
			Summary:  strings.TrimSpace(in.Summary),
			Solution: strings.TrimSpace(in.Solution),
			Raw:      raw,
		}
	case llm.ToolRequestDocumentation:
		var in llm.RequestDocumentationInput
		if err := json.Unmarshal(call.Input, &in); err != nil {
			return unparseable(raw, "invalid %s input: %v", call.Name, err)
		}
		query := strings.TrimSpace(in.SearchQuery)
		if query == "" {
			return unparseable(raw, "%s called without a search query", call.Name)
		}
		return Outcome{
			Kind:     OutcomeGap,
			Marker:   call.Name,
			GapQuery: query,
			Reason:   strings.TrimSpace(in.Reason),
			Raw:      raw,
		}
	default:
		return unparseable(raw, "unknown tool %q", call.Name)
	}
}

// responseText renders a first-pass answer for the trace: the model's text
// followed by its tool calls.
func responseText(resp llmtypes.Response) string {
	parts := []string{}
	if t := strings.TrimSpace(resp.Text); t != "" {
		parts = append(parts, t)
	}
	for _, c := range resp.ToolCalls {
		parts = append(parts, fmt.Sprintf("%s(%s)", c.Name, string(c.Input)))
	}
	return strings.Join(parts, "\n")
}

// DecodeVerdict decodes the free-form second-pass analysis. The first line
// that starts with an uppercase verdict token decides; markdown emphasis and
// heading markers in front of the token are ignored.
func DecodeVerdict(text string) Outcome {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "*#_> ")

		switch {
		case hasToken(line, VerdictIncomplete):
			rest := strings.TrimLeft(line[len(VerdictIncomplete):], "*_ ")
			if !strings.HasPrefix(rest, ":") {
				return unparseable(text, "%s verdict without a search query", VerdictIncomplete)
			}
			query := strings.Trim(strings.TrimSpace(rest[1:]), "*_`\"")
			query = strings.TrimSpace(query)
			if query == "" {
				return unparseable(text, "%s verdict without a search query", VerdictIncomplete)
			}
			return Outcome{Kind: OutcomeGap, Marker: VerdictIncomplete, GapQuery: query, Raw: text}
		case hasToken(line, VerdictComplete):
			return Outcome{Kind: OutcomeComplete, Marker: VerdictComplete, Raw: text}
		case hasToken(line, VerdictAmbiguous):
			return Outcome{Kind: OutcomeAmbiguous, Marker: VerdictAmbiguous, Raw: text}
		}
	}
	return unparseable(text, "no verdict found in analysis")
}

// hasToken reports whether line starts with token as a whole word.
func hasToken(line, token string) bool {
	if !strings.HasPrefix(line, token) {
		return false
	}
	rest := line[len(token):]
	if rest == "" {
		return true
	}
	r := rune(rest[0])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}
