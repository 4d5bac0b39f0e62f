package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"termagent/internal/classify"
	"termagent/internal/security"

	"google.golang.org/genai"
)

const (
	// DefaultReadLimit is the maximum number of lines returned per call.
	DefaultReadLimit = 2000
	// maxLineLength truncates pathological single lines.
	maxLineLength = 2000
)

// ReadTool reads files and returns their contents with line numbers.
type ReadTool struct {
	validator *security.PathValidator
}

// NewReadTool creates a ReadTool bound to the given path validator.
func NewReadTool(validator *security.PathValidator) *ReadTool {
	return &ReadTool{validator: validator}
}

func (t *ReadTool) Name() string {
	return "read_file"
}

func (t *ReadTool) Description() string {
	return `Reads a file from the workspace and returns its contents with line numbers.

PARAMETERS:
- file_path (required): Path to the file, absolute or workspace-relative
- offset (optional): Line number to start reading from (1-indexed, default: 1)
- limit (optional): Maximum number of lines to read (default: 2000)

LIMITATIONS:
- Lines longer than 2000 characters are truncated
- Use offset/limit to page through large files`
}

func (t *ReadTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to read",
				},
				"offset": {
					Type:        genai.TypeInteger,
					Description: "The line number to start reading from (1-indexed). Optional.",
				},
				"limit": {
					Type:        genai.TypeInteger,
					Description: "The maximum number of lines to read. Optional, defaults to 2000.",
				},
			},
			Required: []string{"file_path"},
		},
	}
}

type readParams struct {
	path   string
	offset int
	limit  int
}

func (t *ReadTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return nil, NewValidationError("file_path", "is required")
	}

	resolved, err := t.validator.Resolve(filePath)
	if err != nil {
		return nil, NewValidationError("file_path", err.Error())
	}

	offset := GetIntDefault(args, "offset", 1)
	if offset < 1 {
		offset = 1
	}
	limit := GetIntDefault(args, "limit", DefaultReadLimit)
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	return readParams{path: resolved, offset: offset, limit: limit}, nil
}

func (t *ReadTool) CreateInvocation(params ValidatedParams) Invocation {
	return &readInvocation{params: params.(readParams)}
}

type readInvocation struct {
	params readParams
}

func (inv *readInvocation) Execute(ctx context.Context) ToolResult {
	p := inv.params

	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", p.path), classify.ErrorTypeConfigurationError)
		}
		return NewErrorResult(fmt.Sprintf("error accessing file: %s", err), classify.ErrorTypePermissionError)
	}
	if info.IsDir() {
		return NewErrorResult(fmt.Sprintf("%s is a directory, not a file", p.path), classify.ErrorTypeConfigurationError)
	}

	file, err := os.Open(p.path)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("error opening file: %s", err), classify.ErrorTypePermissionError)
	}
	defer file.Close()

	var out []byte
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	lineNum := 0
	linesRead := 0
	for scanner.Scan() {
		lineNum++
		if lineNum < p.offset {
			continue
		}
		if linesRead >= p.limit {
			break
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "..."
		}
		out = append(out, fmt.Sprintf("%6d\t%s\n", lineNum, line)...)
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err), classify.ErrorTypeUnknown)
	}

	content := string(out)
	if content == "" {
		if p.offset > 1 && lineNum > 0 {
			content = fmt.Sprintf("(offset %d is beyond end of file, file has %d lines)", p.offset, lineNum)
		} else {
			content = "(empty file)"
		}
	}

	return NewResult(content)
}
