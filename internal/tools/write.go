package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/genai"

	"termagent/internal/classify"
	"termagent/internal/fileutil"
	"termagent/internal/security"
)

// WriteTool writes content to files inside the workspace.
type WriteTool struct {
	validator *security.PathValidator
}

// NewWriteTool creates a WriteTool bound to the given path validator.
func NewWriteTool(validator *security.PathValidator) *WriteTool {
	return &WriteTool{validator: validator}
}

func (t *WriteTool) Name() string {
	return "write_file"
}

func (t *WriteTool) Description() string {
	return "Writes content to a file. Creates the file if it doesn't exist, or overwrites if it does. Parent directories are created as needed."
}

func (t *WriteTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to write",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The content to write to the file",
				},
			},
			Required: []string{"file_path", "content"},
		},
	}
}

type writeParams struct {
	path    string
	content string
}

func (t *WriteTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return nil, NewValidationError("file_path", "is required")
	}
	content, ok := GetString(args, "content")
	if !ok {
		return nil, NewValidationError("content", "is required")
	}

	resolved, err := t.validator.Resolve(filePath)
	if err != nil {
		return nil, NewValidationError("file_path", err.Error())
	}

	return writeParams{path: resolved, content: content}, nil
}

func (t *WriteTool) CreateInvocation(params ValidatedParams) Invocation {
	return &writeInvocation{params: params.(writeParams)}
}

type writeInvocation struct {
	params writeParams
}

func (inv *writeInvocation) Execute(ctx context.Context) ToolResult {
	p := inv.params

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return NewErrorResult(fmt.Sprintf("error creating directories: %s", err), classify.ErrorTypePermissionError)
	}

	_, statErr := os.Stat(p.path)
	isNew := os.IsNotExist(statErr)

	// Atomic write so an interrupted process never leaves a torn file.
	if err := fileutil.AtomicWrite(p.path, []byte(p.content), 0644); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err), classify.ErrorTypePermissionError)
	}

	if isNew {
		return NewResult(fmt.Sprintf("Created new file: %s (%d bytes)", p.path, len(p.content)))
	}
	return NewResult(fmt.Sprintf("Updated file: %s (%d bytes)", p.path, len(p.content)))
}
