package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/sergi/go-diff/diffmatchpatch"

	"termagent/internal/classify"
	"termagent/internal/fileutil"
	"termagent/internal/security"
)

// EditTool performs search/replace operations in files.
type EditTool struct {
	validator *security.PathValidator
}

// NewEditTool creates an EditTool bound to the given path validator.
func NewEditTool(validator *security.PathValidator) *EditTool {
	return &EditTool{validator: validator}
}

func (t *EditTool) Name() string {
	return "edit_file"
}

func (t *EditTool) Description() string {
	return "Performs string replacement in a file. The old_string must be unique in the file unless replace_all is true."
}

func (t *EditTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to edit",
				},
				"old_string": {
					Type:        genai.TypeString,
					Description: "The text to find and replace",
				},
				"new_string": {
					Type:        genai.TypeString,
					Description: "The text to replace with (must be different from old_string)",
				},
				"replace_all": {
					Type:        genai.TypeBoolean,
					Description: "If true, replace all occurrences. If false (default), old_string must be unique.",
				},
			},
			Required: []string{"file_path", "old_string", "new_string"},
		},
	}
}

type editParams struct {
	path       string
	oldStr     string
	newStr     string
	replaceAll bool
}

func (t *EditTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return nil, NewValidationError("file_path", "is required")
	}
	oldStr, ok := GetString(args, "old_string")
	if !ok || oldStr == "" {
		return nil, NewValidationError("old_string", "is required")
	}
	newStr, ok := GetString(args, "new_string")
	if !ok {
		return nil, NewValidationError("new_string", "is required")
	}
	if oldStr == newStr {
		return nil, NewValidationError("new_string", "must be different from old_string")
	}

	resolved, err := t.validator.ResolveFile(filePath)
	if err != nil {
		return nil, NewValidationError("file_path", err.Error())
	}

	return editParams{
		path:       resolved,
		oldStr:     oldStr,
		newStr:     newStr,
		replaceAll: GetBoolDefault(args, "replace_all", false),
	}, nil
}

func (t *EditTool) CreateInvocation(params ValidatedParams) Invocation {
	return &editInvocation{params: params.(editParams)}
}

type editInvocation struct {
	params editParams
}

func (inv *editInvocation) Execute(ctx context.Context) ToolResult {
	p := inv.params

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", p.path), classify.ErrorTypeConfigurationError)
		}
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err), classify.ErrorTypePermissionError)
	}

	if isBinary(data) {
		return NewErrorResult(fmt.Sprintf("cannot edit binary file: %s", p.path), classify.ErrorTypeConfigurationError)
	}

	content := string(data)
	count := strings.Count(content, p.oldStr)

	if count == 0 {
		return NewErrorResult(fmt.Sprintf("old_string not found in file: %s", p.path), classify.ErrorTypeConfigurationError)
	}
	if count > 1 && !p.replaceAll {
		lineInfo := occurrenceLines(content, p.oldStr)
		return NewErrorResult(
			fmt.Sprintf("old_string appears %d times in %s%s. Provide more surrounding context to make it unique, or set replace_all=true.",
				count, p.path, lineInfo),
			classify.ErrorTypeConfigurationError,
		)
	}

	var newContent string
	if p.replaceAll {
		newContent = strings.ReplaceAll(content, p.oldStr, p.newStr)
	} else {
		newContent = strings.Replace(content, p.oldStr, p.newStr, 1)
	}

	if err := fileutil.AtomicWrite(p.path, []byte(newContent), 0644); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err), classify.ErrorTypePermissionError)
	}

	return NewResult(fmt.Sprintf("Replaced %d occurrence(s) in %s\n%s",
		count, p.path, diffSummary(content, newContent)))
}

// isBinary checks the first 512 bytes for null bytes.
func isBinary(data []byte) bool {
	checkLen := len(data)
	if checkLen > 512 {
		checkLen = 512
	}
	for _, b := range data[:checkLen] {
		if b == 0 {
			return true
		}
	}
	return false
}

// occurrenceLines lists the line numbers where needle occurs, for
// actionable "not unique" errors.
func occurrenceLines(content, needle string) string {
	var lineNums []string
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, needle) {
			lineNums = append(lineNums, fmt.Sprintf("%d", i+1))
		}
	}
	if len(lineNums) == 0 {
		return ""
	}
	return fmt.Sprintf(" (lines: %s)", strings.Join(lineNums, ", "))
}

// diffSummary reports how many characters were inserted and deleted.
func diffSummary(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return fmt.Sprintf("(+%d/-%d characters)", inserted, deleted)
}
