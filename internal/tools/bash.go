package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"termagent/internal/classify"
	"termagent/internal/security"

	"google.golang.org/genai"
)

// SafeEnvVars is the whitelist of environment variables passed to shell
// commands, so commands never inherit API keys or other secrets.
var SafeEnvVars = []string{
	"PATH",
	"HOME",
	"USER",
	"SHELL",
	"TERM",
	"LANG",
	"LC_ALL",
	"TMPDIR",
	"XDG_CONFIG_HOME",
	"XDG_DATA_HOME",
	"XDG_CACHE_HOME",
	// Go-specific
	"GOPATH",
	"GOROOT",
	"GOPROXY",
	"GOFLAGS",
	// Node/npm
	"NODE_PATH",
	// Python
	"PYTHONPATH",
	"VIRTUAL_ENV",
}

// DefaultBashTimeout is the default timeout for shell commands.
const DefaultBashTimeout = 30 * time.Second

const maxCommandOutput = 30000

// BashSession keeps the working directory sticky across invocations so
// sequential commands behave like one shell session.
type BashSession struct {
	workDir string
	mu      sync.Mutex
}

// NewBashSession creates a session rooted at workDir.
func NewBashSession(workDir string) *BashSession {
	return &BashSession{workDir: workDir}
}

// WorkDir returns the current working directory of the session.
func (s *BashSession) WorkDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workDir
}

// SetWorkDir updates the working directory of the session.
func (s *BashSession) SetWorkDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workDir = dir
}

// BashTool executes shell commands inside the workspace.
type BashTool struct {
	session  *BashSession
	redactor *security.SecretRedactor
	timeout  time.Duration
}

// NewBashTool creates a BashTool rooted at workDir.
func NewBashTool(workDir string) *BashTool {
	return &BashTool{
		session:  NewBashSession(workDir),
		redactor: security.NewSecretRedactor(),
		timeout:  DefaultBashTimeout,
	}
}

// SetTimeout sets the timeout for shell commands.
func (t *BashTool) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

func (t *BashTool) Name() string {
	return "run_command"
}

func (t *BashTool) Description() string {
	return `Executes a shell command in the workspace and returns its output.

PARAMETERS:
- command (required): The shell command to execute
- description (optional): Brief description of what the command does

TIMEOUT:
- Default: 30 seconds

OUTPUT:
- stdout and stderr are captured
- Output over 30000 chars is truncated
- Exit codes are reported on failure`
}

func (t *BashTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The shell command to execute",
				},
				"description": {
					Type:        genai.TypeString,
					Description: "A brief description of what the command does",
				},
			},
			Required: []string{"command"},
		},
	}
}

type bashParams struct {
	command string
}

func (t *BashTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	command, ok := GetString(args, "command")
	if !ok || command == "" {
		return nil, NewValidationError("command", "is required")
	}

	if result := security.ValidateCommand(command); !result.Valid {
		return nil, NewValidationError("command", fmt.Sprintf("blocked: %s", result.Reason))
	}

	return bashParams{command: command}, nil
}

func (t *BashTool) CreateInvocation(params ValidatedParams) Invocation {
	return &bashInvocation{tool: t, params: params.(bashParams)}
}

type bashInvocation struct {
	tool   *BashTool
	params bashParams
}

// buildSafeEnv creates the sanitized environment for command execution.
func buildSafeEnv() []string {
	env := make([]string, 0, len(SafeEnvVars))
	hasPath := false
	for _, key := range SafeEnvVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
			if key == "PATH" {
				hasPath = true
			}
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin")
	}
	return env
}

func (inv *bashInvocation) Execute(ctx context.Context) ToolResult {
	t := inv.tool
	command := inv.params.command

	execCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, "bash", "-c", command)
	cmd.Dir = t.session.WorkDir()
	cmd.Env = buildSafeEnv()

	// Own process group so child processes die with the command.
	setProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return NewErrorResult(
			fmt.Sprintf("failed to start command: %s", err),
			classify.ClassifyErrorType("", err.Error(), command),
		)
	}

	var cmdErr error
	cmdDone := make(chan struct{})
	go func() {
		cmdErr = cmd.Wait()
		close(cmdDone)
	}()

	timedOut := false
	select {
	case <-cmdDone:
	case <-execCtx.Done():
		timedOut = true
		killProcessGroup(cmd, 5*time.Second)
		<-cmdDone
	}

	if timedOut {
		return NewErrorResult(
			fmt.Sprintf("command timed out after %v", t.timeout),
			classify.ErrorTypeUnknown,
		)
	}

	output := inv.combinedOutput(stdout.String(), stderr.String())

	if cmdErr != nil {
		if exitErr, ok := cmdErr.(*exec.ExitError); ok {
			errType := classify.ClassifyErrorType(output, cmdErr.Error(), command)
			return ToolResult{
				LLMContent: fmt.Sprintf("command exited with code %d\n%s", exitErr.ExitCode(), output),
				Error: &ToolError{
					Message: fmt.Sprintf("command exited with code %d", exitErr.ExitCode()),
					Type:    errType,
				},
			}
		}
		return NewErrorResult(
			fmt.Sprintf("command failed: %s", cmdErr),
			classify.ClassifyErrorType(output, cmdErr.Error(), command),
		)
	}

	t.updateSessionAfterCommand(command)

	return NewResult(output)
}

// combinedOutput merges stdout and stderr, redacts secrets and truncates.
func (inv *bashInvocation) combinedOutput(stdoutStr, stderrStr string) string {
	var output strings.Builder
	if len(stdoutStr) > 0 {
		output.WriteString(stdoutStr)
	}
	if len(stderrStr) > 0 {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n")
		output.WriteString(stderrStr)
	}

	result := inv.tool.redactor.Redact(output.String())
	if len(result) > maxCommandOutput {
		totalLen := len(result)
		result = result[:maxCommandOutput] +
			fmt.Sprintf("\n... (output truncated: showing %d of %d characters)", maxCommandOutput, totalLen)
	}
	if result == "" {
		result = "(no output)"
	}
	return result
}

// updateSessionAfterCommand makes simple "cd <path>" commands sticky.
// Compound commands (cd x && ...) are skipped since the final directory
// depends on the whole chain.
func (t *BashTool) updateSessionAfterCommand(command string) {
	trimmed := strings.TrimSpace(command)

	if trimmed == "cd" || trimmed == "cd ~" {
		if home, err := os.UserHomeDir(); err == nil {
			t.session.SetWorkDir(home)
		}
		return
	}
	if !strings.HasPrefix(trimmed, "cd ") {
		return
	}

	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "cd "))
	for _, sep := range []string{"&&", "||", ";", "|"} {
		if strings.Contains(rest, sep) {
			return
		}
	}

	if (strings.HasPrefix(rest, "\"") && strings.HasSuffix(rest, "\"")) ||
		(strings.HasPrefix(rest, "'") && strings.HasSuffix(rest, "'")) {
		rest = rest[1 : len(rest)-1]
	}
	if strings.HasPrefix(rest, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			rest = home + rest[1:]
		}
	}
	if rest == "" {
		return
	}

	target := rest
	if !filepath.IsAbs(target) {
		target = filepath.Join(t.session.WorkDir(), target)
	}
	target = filepath.Clean(target)

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		t.session.SetWorkDir(target)
	}
}
