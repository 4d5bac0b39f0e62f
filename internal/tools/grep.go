package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"termagent/internal/classify"
	"termagent/internal/security"
)

const (
	maxGrepMatches  = 500
	maxGrepFileSize = 10 * 1024 * 1024
)

// GrepTool searches for regex patterns in workspace files.
type GrepTool struct {
	workDir   string
	validator *security.PathValidator
}

// NewGrepTool creates a GrepTool rooted at workDir.
func NewGrepTool(workDir string, validator *security.PathValidator) *GrepTool {
	return &GrepTool{workDir: workDir, validator: validator}
}

func (t *GrepTool) Name() string {
	return "grep"
}

func (t *GrepTool) Description() string {
	return `Searches for a regex pattern in files. Returns matching lines with file paths and line numbers.

PARAMETERS:
- pattern (required): Regex pattern to search for
- path (optional): File or directory to search in (default: workspace root)
- glob (optional): Filter files by pattern (e.g., "*.go", "**/*.ts")
- case_insensitive (optional): If true, ignore case (default: false)

LIMITATIONS:
- Maximum 500 matches returned
- Files over 10MB and binary files are skipped`
}

func (t *GrepTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The regex pattern to search for",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "The file or directory to search in. Defaults to the workspace root.",
				},
				"glob": {
					Type:        genai.TypeString,
					Description: "Glob pattern to filter files (e.g., '*.go')",
				},
				"case_insensitive": {
					Type:        genai.TypeBoolean,
					Description: "If true, search is case-insensitive",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

type grepParams struct {
	re         *regexp.Regexp
	searchPath string
	glob       string
}

func (t *GrepTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return nil, NewValidationError("pattern", "is required")
	}

	if GetBoolDefault(args, "case_insensitive", false) {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewValidationError("pattern", fmt.Sprintf("invalid regex: %s", err))
	}

	searchPath := GetStringDefault(args, "path", t.workDir)
	resolved, err := t.validator.Resolve(searchPath)
	if err != nil {
		return nil, NewValidationError("path", err.Error())
	}

	return grepParams{
		re:         re,
		searchPath: resolved,
		glob:       GetStringDefault(args, "glob", ""),
	}, nil
}

func (t *GrepTool) CreateInvocation(params ValidatedParams) Invocation {
	return &grepInvocation{tool: t, params: params.(grepParams)}
}

type grepInvocation struct {
	tool   *GrepTool
	params grepParams
}

func (inv *grepInvocation) Execute(ctx context.Context) ToolResult {
	p := inv.params

	info, err := os.Stat(p.searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path not found: %s", p.searchPath), classify.ErrorTypeConfigurationError)
	}

	var builder strings.Builder
	matches := 0
	filesWithMatches := 0

	searchFile := func(path string) {
		found := inv.searchFile(path, &builder, &matches)
		if found {
			filesWithMatches++
		}
	}

	if !info.IsDir() {
		searchFile(p.searchPath)
	} else {
		filepath.WalkDir(p.searchPath, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil || matches >= maxGrepMatches {
				return filepath.SkipAll
			}
			name := d.Name()
			if d.IsDir() {
				if path != p.searchPath && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if inv.params.glob != "" {
				rel, relErr := filepath.Rel(p.searchPath, path)
				if relErr != nil {
					rel = name
				}
				matched, _ := doublestar.Match(inv.params.glob, rel)
				if !matched {
					// Also try matching against the bare file name so
					// "*.go" works at any depth.
					if nameMatched, _ := doublestar.Match(inv.params.glob, name); !nameMatched {
						return nil
					}
				}
			}
			searchFile(path)
			return nil
		})
	}

	if matches == 0 {
		return NewResult("(no matches)")
	}

	header := fmt.Sprintf("Found %d match(es) in %d file(s)\n", matches, filesWithMatches)
	out := header + builder.String()
	if matches >= maxGrepMatches {
		out += fmt.Sprintf("\n... (stopped at %d matches)", maxGrepMatches)
	}
	return NewResult(out)
}

// searchFile scans one file for the pattern, appending matches to the
// builder. Returns true if the file had at least one match.
func (inv *grepInvocation) searchFile(path string, builder *strings.Builder, matches *int) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxGrepFileSize {
		return false
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	// Binary sniff on the first chunk.
	head := make([]byte, 512)
	n, _ := file.Read(head)
	if isBinary(head[:n]) {
		return false
	}
	if _, err := file.Seek(0, 0); err != nil {
		return false
	}

	rel, err := filepath.Rel(inv.tool.workDir, path)
	if err != nil {
		rel = path
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	found := false
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if *matches >= maxGrepMatches {
			break
		}
		line := scanner.Text()
		if inv.params.re.MatchString(line) {
			if len(line) > maxLineLength {
				line = line[:maxLineLength] + "..."
			}
			builder.WriteString(fmt.Sprintf("%s:%d: %s\n", rel, lineNum, line))
			*matches++
			found = true
		}
	}
	return found
}
