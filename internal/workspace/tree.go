package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultTreeDepth bounds the project tree traversal.
const DefaultTreeDepth = 3

// skipDirs are dependency and build directories excluded from traversal.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"__pycache__":  true,
	"venv":         true,
}

// BuildProjectTree renders a depth-bounded textual tree of the workspace.
// Entries are sorted so repeated runs over an unchanged tree produce
// identical output. Dot-prefixed entries are skipped.
func BuildProjectTree(root string) string {
	var sb strings.Builder
	sb.WriteString(filepath.Base(root) + "/\n")
	writeTreeLevel(&sb, root, "", 1, DefaultTreeDepth)
	return sb.String()
}

func writeTreeLevel(sb *strings.Builder, dir, indent string, depth, maxDepth int) {
	if depth > maxDepth {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	visible := entries[:0]
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() && skipDirs[name] {
			continue
		}
		visible = append(visible, e)
	}
	sort.Slice(visible, func(i, j int) bool {
		// Directories before files, then by name.
		if visible[i].IsDir() != visible[j].IsDir() {
			return visible[i].IsDir()
		}
		return visible[i].Name() < visible[j].Name()
	})

	for i, e := range visible {
		connector := "├── "
		childIndent := indent + "│   "
		if i == len(visible)-1 {
			connector = "└── "
			childIndent = indent + "    "
		}

		if e.IsDir() {
			sb.WriteString(indent + connector + e.Name() + "/\n")
			writeTreeLevel(sb, filepath.Join(dir, e.Name()), childIndent, depth+1, maxDepth)
		} else {
			sb.WriteString(indent + connector + e.Name() + "\n")
		}
	}
}
