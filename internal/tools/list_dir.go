package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"termagent/internal/classify"
	"termagent/internal/security"
)

// maxListDirEntries limits directory listings to keep payloads bounded.
const maxListDirEntries = 2000

// ListDirTool lists the contents of a directory.
type ListDirTool struct {
	validator *security.PathValidator
}

// NewListDirTool creates a ListDirTool bound to the given path validator.
func NewListDirTool(validator *security.PathValidator) *ListDirTool {
	return &ListDirTool{validator: validator}
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Description() string {
	return "Lists the contents of a directory, including files and subdirectories. Defaults to the workspace root."
}

func (t *ListDirTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"directory_path": {
					Type:        genai.TypeString,
					Description: "The path to the directory to list. Defaults to the workspace root if not provided.",
				},
			},
			Required: []string{},
		},
	}
}

type listDirParams struct {
	path string
}

func (t *ListDirTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	dirPath := GetStringDefault(args, "directory_path", ".")

	resolved, err := t.validator.Resolve(dirPath)
	if err != nil {
		return nil, NewValidationError("directory_path", err.Error())
	}

	return listDirParams{path: resolved}, nil
}

func (t *ListDirTool) CreateInvocation(params ValidatedParams) Invocation {
	return &listDirInvocation{params: params.(listDirParams)}
}

type listDirInvocation struct {
	params listDirParams
}

func (inv *listDirInvocation) Execute(ctx context.Context) ToolResult {
	path := inv.params.path

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("directory not found: %s", path), classify.ErrorTypeConfigurationError)
		}
		return NewErrorResult(fmt.Sprintf("error reading directory: %s", err), classify.ErrorTypePermissionError)
	}

	if len(entries) == 0 {
		return NewResult("(empty)")
	}

	truncated := false
	if len(entries) > maxListDirEntries {
		truncated = true
		entries = entries[:maxListDirEntries]
	}

	var builder strings.Builder
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		builder.WriteString(name)
		builder.WriteByte('\n')
	}
	if truncated {
		builder.WriteString(fmt.Sprintf("\n... (output truncated: showing %d entries)", maxListDirEntries))
	}

	return NewResult(builder.String())
}
