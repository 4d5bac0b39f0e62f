package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// MaxStructureFiles caps how many source files get per-file extraction.
const MaxStructureFiles = 50

// Decl is a named declaration with its 1-based line number.
type Decl struct {
	Name string
	Line int
}

// FileStructure is the heuristic summary of one source file.
type FileStructure struct {
	Path      string
	Imports   []string
	Classes   []Decl
	Functions []Decl
}

// langFamily groups extensions that share declaration syntax. The regexes
// are deliberately heuristic; mis-extraction on exotic code is acceptable.
type langFamily struct {
	importRe   *regexp.Regexp
	classRe    *regexp.Regexp
	functionRe *regexp.Regexp
}

var (
	jvmFamily = &langFamily{
		importRe:   regexp.MustCompile(`^\s*import\s+([\w.]+(?:\.\*)?)`),
		classRe:    regexp.MustCompile(`^\s*(?:public\s+|private\s+|internal\s+|abstract\s+|final\s+|open\s+|sealed\s+|data\s+)*(?:class|interface|enum|object)\s+(\w+)`),
		functionRe: regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|internal\s+|static\s+|final\s+|override\s+|suspend\s+|synchronized\s+|abstract\s+)*(?:fun\s+(\w+)\s*\(|[\w<>\[\],.?\s]+\s+(\w+)\s*\([^;]*\)\s*(?:throws\s+[\w,\s]+)?\s*\{)`),
	}
	jsFamily = &langFamily{
		importRe:   regexp.MustCompile(`^\s*(?:import\s+.*from\s+['"]([^'"]+)['"]|import\s+['"]([^'"]+)['"]|const\s+\w+\s*=\s*require\(['"]([^'"]+)['"]\))`),
		classRe:    regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?(?:class|interface)\s+(\w+)`),
		functionRe: regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?(?:function\s+(\w+)|const\s+(\w+)\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>)`),
	}
	pythonFamily = &langFamily{
		importRe:   regexp.MustCompile(`^\s*(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import)`),
		classRe:    regexp.MustCompile(`^\s*class\s+(\w+)`),
		functionRe: regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)`),
	}
	goFamily = &langFamily{
		importRe:   regexp.MustCompile(`^\s*(?:import\s+)?(?:\w+\s+)?"([\w./\-]+)"`),
		classRe:    regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)`),
		functionRe: regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`),
	}
)

var familyByExt = map[string]*langFamily{
	".java":  jvmFamily,
	".kt":    jvmFamily,
	".kts":   jvmFamily,
	".scala": jvmFamily,
	".js":    jsFamily,
	".jsx":   jsFamily,
	".ts":    jsFamily,
	".tsx":   jsFamily,
	".mjs":   jsFamily,
	".py":    pythonFamily,
	".go":    goFamily,
}

// sourceExtensions is the enumeration allow-list. Extensions without a
// language family still appear in the tree but yield empty summaries.
var sourceExtensions = map[string]bool{
	".java": true, ".kt": true, ".kts": true, ".scala": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
	".py": true, ".go": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".rs": true, ".rb": true, ".php": true, ".swift": true,
}

// ExtractProjectStructure builds the full workspace summary: the project
// tree followed by per-file imports and declarations for up to
// MaxStructureFiles source files. The context is checked between files;
// on cancellation the accumulated partial result is returned. A single
// unreadable file is skipped, never fatal.
func ExtractProjectStructure(ctx context.Context, root string) string {
	var sb strings.Builder

	info := DetectProject(root)
	if info.Type != ProjectTypeUnknown {
		sb.WriteString(fmt.Sprintf("Project type: %s", info.Type))
		if info.Name != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", info.Name))
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("Project tree:\n")
	sb.WriteString(BuildProjectTree(root))

	files := enumerateSourceFiles(ctx, root)
	if len(files) > MaxStructureFiles {
		files = files[:MaxStructureFiles]
	}

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		fs, err := extractFileStructure(root, path)
		if err != nil {
			continue
		}
		writeFileStructure(&sb, fs)
	}

	return sb.String()
}

// enumerateSourceFiles walks the workspace collecting source files,
// excluding dot-prefixed and dependency directories. Output is sorted
// for determinism.
func enumerateSourceFiles(ctx context.Context, root string) []string {
	var files []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if sourceExtensions[filepath.Ext(name)] {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func extractFileStructure(root, path string) (*FileStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	fs := &FileStructure{Path: rel}
	family := familyByExt[filepath.Ext(path)]
	if family == nil {
		return fs, nil
	}

	for i, line := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		if m := family.importRe.FindStringSubmatch(line); m != nil {
			if imp := firstGroup(m); imp != "" {
				fs.Imports = append(fs.Imports, imp)
			}
			continue
		}
		if m := family.classRe.FindStringSubmatch(line); m != nil {
			if name := firstGroup(m); name != "" {
				fs.Classes = append(fs.Classes, Decl{Name: name, Line: lineNo})
			}
			continue
		}
		if m := family.functionRe.FindStringSubmatch(line); m != nil {
			if name := firstGroup(m); name != "" {
				fs.Functions = append(fs.Functions, Decl{Name: name, Line: lineNo})
			}
		}
	}

	return fs, nil
}

// firstGroup returns the first non-empty capture group of a submatch.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func writeFileStructure(sb *strings.Builder, fs *FileStructure) {
	sb.WriteString("\n" + fs.Path + ":\n")
	if len(fs.Imports) > 0 {
		sb.WriteString("  imports: " + strings.Join(fs.Imports, ", ") + "\n")
	}
	for _, c := range fs.Classes {
		sb.WriteString(fmt.Sprintf("  type %s (line %d)\n", c.Name, c.Line))
	}
	for _, f := range fs.Functions {
		sb.WriteString(fmt.Sprintf("  func %s (line %d)\n", f.Name, f.Line))
	}
}
