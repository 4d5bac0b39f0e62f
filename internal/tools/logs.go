package tools

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"termagent/internal/logging"
)

// DefaultLogLimit is the default number of log lines returned.
const DefaultLogLimit = 100

// ReadLogsTool returns recent application log lines, optionally filtered
// by a tag. Read-only diagnostics; it never touches session state.
type ReadLogsTool struct{}

// NewReadLogsTool creates a ReadLogsTool.
func NewReadLogsTool() *ReadLogsTool {
	return &ReadLogsTool{}
}

func (t *ReadLogsTool) Name() string {
	return "read_logs"
}

func (t *ReadLogsTool) Description() string {
	return "Returns recent application log lines for diagnostics. Optionally filter by a tag substring (case-insensitive)."
}

func (t *ReadLogsTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"tag": {
					Type:        genai.TypeString,
					Description: "Only return lines containing this tag (case-insensitive). Optional.",
				},
				"limit": {
					Type:        genai.TypeInteger,
					Description: "Maximum number of lines to return. Optional, defaults to 100.",
				},
			},
			Required: []string{},
		},
	}
}

type readLogsParams struct {
	tag   string
	limit int
}

func (t *ReadLogsTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	limit := GetIntDefault(args, "limit", DefaultLogLimit)
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return readLogsParams{
		tag:   GetStringDefault(args, "tag", ""),
		limit: limit,
	}, nil
}

func (t *ReadLogsTool) CreateInvocation(params ValidatedParams) Invocation {
	return &readLogsInvocation{params: params.(readLogsParams)}
}

type readLogsInvocation struct {
	params readLogsParams
}

func (inv *readLogsInvocation) Execute(ctx context.Context) ToolResult {
	lines := logging.Recent(inv.params.tag, inv.params.limit)
	if len(lines) == 0 {
		return NewResult("(no log lines)")
	}
	return NewResult(strings.Join(lines, "\n"))
}
