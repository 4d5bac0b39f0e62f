package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termagent/internal/classify"
	"termagent/internal/security"
)

// newTestWorkspace returns a symlink-resolved temp dir and a validator
// rooted at it. EvalSymlinks matters on systems where TMPDIR is a link.
func newTestWorkspace(t *testing.T) (string, *security.PathValidator) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root, security.NewPathValidator(root)
}

// invoke validates args, binds them and executes the invocation.
func invoke(t *testing.T, tool Tool, args map[string]any) ToolResult {
	t.Helper()
	params, err := tool.ValidateParams(args)
	require.NoError(t, err)
	return SafeExecute(context.Background(), tool.CreateInvocation(params))
}

func TestWriteAndReadRoundtrip(t *testing.T) {
	root, validator := newTestWorkspace(t)

	write := NewWriteTool(validator)
	res := invoke(t, write, map[string]any{
		"file_path": "notes.txt",
		"content":   "first\nsecond\nthird\n",
	})
	require.False(t, res.Failed(), res.LLMContent)
	assert.Contains(t, res.LLMContent, "Created new file")

	read := NewReadTool(validator)
	res = invoke(t, read, map[string]any{"file_path": filepath.Join(root, "notes.txt")})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "     1\tfirst\n")
	assert.Contains(t, res.LLMContent, "     3\tthird\n")

	// Second write to the same path reports an update.
	res = invoke(t, write, map[string]any{
		"file_path": "notes.txt",
		"content":   "replaced\n",
	})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "Updated file")
}

func TestReadOffsetAndLimit(t *testing.T) {
	root, validator := newTestWorkspace(t)
	path := filepath.Join(root, "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0644))

	read := NewReadTool(validator)
	res := invoke(t, read, map[string]any{"file_path": path, "offset": 2, "limit": 2})
	require.False(t, res.Failed())
	assert.Equal(t, "     2\tb\n     3\tc\n", res.LLMContent)

	res = invoke(t, read, map[string]any{"file_path": path, "offset": 100})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "beyond end of file")
}

func TestReadMissingFileIsClassified(t *testing.T) {
	root, validator := newTestWorkspace(t)

	read := NewReadTool(validator)
	res := invoke(t, read, map[string]any{"file_path": filepath.Join(root, "absent.txt")})
	require.True(t, res.Failed())
	assert.Equal(t, classify.ErrorTypeConfigurationError, res.Error.Type)
	assert.Contains(t, res.LLMContent, "file not found")
}

func TestPathOutsideWorkspaceRejectedAtValidation(t *testing.T) {
	_, validator := newTestWorkspace(t)

	read := NewReadTool(validator)
	_, err := read.ValidateParams(map[string]any{"file_path": "/etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace")
}

func TestEditReplacesUniqueString(t *testing.T) {
	root, validator := newTestWorkspace(t)
	path := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc run() {}\n"), 0644))

	edit := NewEditTool(validator)
	res := invoke(t, edit, map[string]any{
		"file_path":  path,
		"old_string": "func run()",
		"new_string": "func execute()",
	})
	require.False(t, res.Failed(), res.LLMContent)
	assert.Contains(t, res.LLMContent, "Replaced 1 occurrence(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "func execute() {}")
}

func TestEditRequiresUniqueOldString(t *testing.T) {
	root, validator := newTestWorkspace(t)
	path := filepath.Join(root, "dup.txt")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\nx = 1\n"), 0644))

	edit := NewEditTool(validator)
	res := invoke(t, edit, map[string]any{
		"file_path":  path,
		"old_string": "x = 1",
		"new_string": "x = 2",
	})
	require.True(t, res.Failed())
	assert.Equal(t, classify.ErrorTypeConfigurationError, res.Error.Type)
	assert.Contains(t, res.LLMContent, "appears 2 times")
	assert.Contains(t, res.LLMContent, "lines: 1, 2")

	// replace_all overrides the uniqueness requirement.
	res = invoke(t, edit, map[string]any{
		"file_path":   path,
		"old_string":  "x = 1",
		"new_string":  "x = 2",
		"replace_all": true,
	})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "Replaced 2 occurrence(s)")
}

func TestEditRejectsEqualStrings(t *testing.T) {
	_, validator := newTestWorkspace(t)

	edit := NewEditTool(validator)
	_, err := edit.ValidateParams(map[string]any{
		"file_path":  "f.txt",
		"old_string": "same",
		"new_string": "same",
	})
	require.Error(t, err)
}

func TestListDirMarksDirectories(t *testing.T) {
	root, validator := newTestWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0644))

	list := NewListDirTool(validator)
	res := invoke(t, list, map[string]any{"directory_path": root})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "sub/\n")
	assert.Contains(t, res.LLMContent, "file.txt\n")
}

func TestGlobOrdersByModTime(t *testing.T) {
	root, validator := newTestWorkspace(t)
	older := filepath.Join(root, "older.go")
	newer := filepath.Join(root, "newer.go")
	require.NoError(t, os.WriteFile(older, []byte("package a"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("package a"), 0644))
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	glob := NewGlobTool(root, validator)
	res := invoke(t, glob, map[string]any{"pattern": "*.go"})
	require.False(t, res.Failed())
	assert.Less(t,
		strings.Index(res.LLMContent, "newer.go"),
		strings.Index(res.LLMContent, "older.go"),
		"most recently modified file should come first")

	res = invoke(t, glob, map[string]any{"pattern": "*.rs"})
	require.False(t, res.Failed())
	assert.Equal(t, "(no matches)", res.LLMContent)
}

func TestGlobCannotEscapeWorkspace(t *testing.T) {
	outer, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(outer, "ws")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outer, "secret.txt"), []byte("outside"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "inside.txt"), []byte("inside"), 0644))

	glob := NewGlobTool(root, security.NewPathValidator(root))

	res := invoke(t, glob, map[string]any{"pattern": "../*.txt"})
	require.False(t, res.Failed())
	assert.Equal(t, "(no matches)", res.LLMContent,
		"matches outside the workspace root must be dropped")

	res = invoke(t, glob, map[string]any{"pattern": "*.txt"})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "inside.txt")
	assert.NotContains(t, res.LLMContent, "secret.txt")
}

func TestGrepFindsMatchesAcrossFiles(t *testing.T) {
	root, validator := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("func Alpha() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("func Beta() {}\nfunc AlphaBeta() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), []byte("Alpha prose\n"), 0644))

	grep := NewGrepTool(root, validator)
	res := invoke(t, grep, map[string]any{"pattern": `func Alpha`, "glob": "*.go"})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "Found 2 match(es) in 2 file(s)")
	assert.Contains(t, res.LLMContent, "a.go:1: func Alpha() {}")
	assert.Contains(t, res.LLMContent, "b.go:2: func AlphaBeta() {}")
	assert.NotContains(t, res.LLMContent, "c.txt")

	res = invoke(t, grep, map[string]any{"pattern": "nothing-matches-this"})
	require.False(t, res.Failed())
	assert.Equal(t, "(no matches)", res.LLMContent)
}

func TestGrepCaseInsensitive(t *testing.T) {
	root, validator := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("HELLO world\n"), 0644))

	grep := NewGrepTool(root, validator)
	res := invoke(t, grep, map[string]any{"pattern": "hello", "case_insensitive": true})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, "a.txt:1: HELLO world")
}

func TestBashRunsCommandsInWorkspace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	root, _ := newTestWorkspace(t)

	bash := NewBashTool(root)
	res := invoke(t, bash, map[string]any{"command": "pwd && echo done"})
	require.False(t, res.Failed(), res.LLMContent)
	assert.Contains(t, res.LLMContent, root)
	assert.Contains(t, res.LLMContent, "done")
}

func TestBashReportsExitCodeAndClassifies(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	root, _ := newTestWorkspace(t)

	bash := NewBashTool(root)
	res := invoke(t, bash, map[string]any{"command": "definitely-not-a-real-binary-xyz"})
	require.True(t, res.Failed())
	assert.Contains(t, res.Error.Message, "exited with code 127")
	assert.Equal(t, classify.ErrorTypeCommandNotFound, res.Error.Type)
}

func TestBashBlocksDangerousCommands(t *testing.T) {
	root, _ := newTestWorkspace(t)

	bash := NewBashTool(root)
	_, err := bash.ValidateParams(map[string]any{"command": "rm -rf /"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestBashTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	root, _ := newTestWorkspace(t)

	bash := NewBashTool(root)
	bash.SetTimeout(200 * time.Millisecond)

	start := time.Now()
	res := invoke(t, bash, map[string]any{"command": "sleep 30"})
	require.True(t, res.Failed())
	assert.Contains(t, res.Error.Message, "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestBashTracksWorkingDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	root, _ := newTestWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))

	bash := NewBashTool(root)
	res := invoke(t, bash, map[string]any{"command": "cd sub"})
	require.False(t, res.Failed(), res.LLMContent)

	res = invoke(t, bash, map[string]any{"command": "pwd"})
	require.False(t, res.Failed())
	assert.Contains(t, res.LLMContent, filepath.Join(root, "sub"))
}

type panickingInvocation struct{}

func (inv *panickingInvocation) Execute(ctx context.Context) ToolResult {
	panic("boom")
}

func TestSafeExecuteContainsPanics(t *testing.T) {
	res := SafeExecute(context.Background(), &panickingInvocation{})
	require.True(t, res.Failed())
	assert.Equal(t, classify.ErrorTypeUnknown, res.Error.Type)
	assert.Contains(t, res.LLMContent, "tool panicked")
}
