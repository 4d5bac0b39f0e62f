package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBuildProjectTreeIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "internal/util/helper.go", "package util\n")
	writeFile(t, root, ".hidden", "skip me\n")

	first := BuildProjectTree(root)
	second := BuildProjectTree(root)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "main.go")
	assert.Contains(t, first, "internal/")
	assert.NotContains(t, first, ".hidden")
}

func TestBuildProjectTreeSkipsDependencyDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/react/index.js", "module.exports = {}\n")
	writeFile(t, root, "src/app.js", "console.log('hi')\n")

	tree := BuildProjectTree(root)

	assert.Contains(t, tree, "src/")
	assert.NotContains(t, tree, "node_modules")
}

func TestExtractProjectStructurePython(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", strings.Join([]string{
		"import os",
		"from flask import Flask",
		"",
		"class Server:",
		"    def __init__(self):",
		"        pass",
		"",
		"def main():",
		"    pass",
	}, "\n"))

	out := ExtractProjectStructure(context.Background(), root)

	assert.Contains(t, out, "app.py")
	assert.Contains(t, out, "imports: os, flask")
	assert.Contains(t, out, "type Server (line 4)")
	assert.Contains(t, out, "func main (line 8)")
}

func TestExtractProjectStructureGo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/demo\n")
	writeFile(t, root, "server.go", strings.Join([]string{
		"package demo",
		"",
		"type Server struct {",
		"\taddr string",
		"}",
		"",
		"func (s *Server) ListenAndServe() error {",
		"\treturn nil",
		"}",
	}, "\n"))

	out := ExtractProjectStructure(context.Background(), root)

	assert.Contains(t, out, "Project type: go (example.com/demo)")
	assert.Contains(t, out, "type Server (line 3)")
	assert.Contains(t, out, "func ListenAndServe (line 7)")
}

func TestExtractProjectStructureCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")
	writeFile(t, root, "b.py", "def b():\n    pass\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := ExtractProjectStructure(ctx, root)

	// The tree is always present even when cancellation preempts
	// per-file extraction.
	assert.Contains(t, out, "Project tree:")
	assert.Contains(t, out, "a.py")
	assert.NotContains(t, out, "func a")
}

func TestDetectProjectNode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "demo-app"}`)

	info := DetectProject(root)

	assert.Equal(t, ProjectTypeNode, info.Type)
	assert.Equal(t, "demo-app", info.Name)
	assert.Equal(t, "npm", info.PackageManager)
}

func TestDetectProjectUnknown(t *testing.T) {
	root := t.TempDir()
	info := DetectProject(root)
	assert.Equal(t, ProjectTypeUnknown, info.Type)
}

func TestExtractCodeSections(t *testing.T) {
	content := strings.Join([]string{
		"package demo",
		"",
		"func First() int {",
		"\treturn 1",
		"}",
		"",
		"func Second() int {",
		"\treturn 2",
		"}",
	}, "\n")

	out := ExtractCodeSections(content, "demo.go", []string{"Second"}, nil)
	assert.Contains(t, out, "func Second() int {")
	assert.NotContains(t, out, "// demo.go: First")

	ranged := ExtractCodeSections(content, "demo.go", nil, []LineRange{{Start: 1, End: 2}})
	assert.Contains(t, ranged, "lines 1-2")
	assert.Contains(t, ranged, "package demo")
	assert.NotContains(t, ranged, "func First")
}
