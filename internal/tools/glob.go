package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"termagent/internal/classify"
	"termagent/internal/security"
)

const maxGlobResults = 1000

// GlobTool finds files matching a glob pattern.
type GlobTool struct {
	workDir   string
	validator *security.PathValidator
}

// NewGlobTool creates a GlobTool rooted at workDir.
func NewGlobTool(workDir string, validator *security.PathValidator) *GlobTool {
	return &GlobTool{workDir: workDir, validator: validator}
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Description() string {
	return `Finds files matching a glob pattern. Returns file paths sorted by modification time (newest first).

PATTERN SYNTAX:
- *: Matches any characters except /
- **: Matches any characters including / (recursive)
- {a,b}: Matches either a or b

COMMON PATTERNS:
- "**/*.go" - All Go files recursively
- "src/**/*" - All files in src directory

LIMITATIONS:
- Maximum 1000 results returned
- Directories are not included (files only)`
}

func (t *GlobTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The glob pattern to match (e.g., '**/*.go', 'src/**/*.ts')",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to search in. Defaults to the workspace root.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

type globParams struct {
	pattern    string
	searchPath string
}

func (t *GlobTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return nil, NewValidationError("pattern", "is required")
	}

	searchPath := GetStringDefault(args, "path", t.workDir)
	resolved, err := t.validator.ResolveDir(searchPath)
	if err != nil {
		return nil, NewValidationError("path", err.Error())
	}

	return globParams{pattern: pattern, searchPath: resolved}, nil
}

func (t *GlobTool) CreateInvocation(params ValidatedParams) Invocation {
	return &globInvocation{tool: t, params: params.(globParams)}
}

type globInvocation struct {
	tool   *GlobTool
	params globParams
}

func (inv *globInvocation) Execute(ctx context.Context) ToolResult {
	p := inv.params

	fullPattern := filepath.Join(p.searchPath, p.pattern)
	matches, err := doublestar.FilepathGlob(fullPattern)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid pattern: %s", err), classify.ErrorTypeConfigurationError)
	}

	type fileInfo struct {
		path    string
		modTime int64
	}
	var files []fileInfo
	for _, match := range matches {
		// Patterns with ".." can walk the joined root out of the
		// workspace; drop any match the validator rejects.
		if _, err := inv.tool.validator.Resolve(match); err != nil {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, fileInfo{path: match, modTime: info.ModTime().Unix()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime > files[j].modTime
	})

	totalFound := len(files)
	if len(files) > maxGlobResults {
		files = files[:maxGlobResults]
	}

	if len(files) == 0 {
		return NewResult("(no matches)")
	}

	var builder strings.Builder
	if totalFound > maxGlobResults {
		builder.WriteString(fmt.Sprintf("(showing %d of %d)\n", maxGlobResults, totalFound))
	}
	for _, f := range files {
		relPath, err := filepath.Rel(inv.tool.workDir, f.path)
		if err != nil {
			relPath = f.path
		}
		builder.WriteString(relPath)
		builder.WriteString("\n")
	}

	return NewResult(builder.String())
}
