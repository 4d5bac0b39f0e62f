package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"termagent/internal/client"
	"termagent/internal/config"
	"termagent/internal/workspace"
)

// projectContextTimeout bounds workspace structure extraction so a huge
// repository cannot stall session startup.
const projectContextTimeout = 5 * time.Second

const basePrompt = `You are a coding agent operating inside a terminal workspace.

You have tools for reading, writing, and editing files, searching the
workspace, and running shell commands. Use them rather than guessing about
file contents or command output.

Guidelines:
- Read a file before editing it.
- Prefer small, targeted edits over rewriting whole files.
- When a command fails, read the error output and adjust instead of
  repeating the same command.
- Paths are resolved relative to the workspace root unless absolute.
- When you are done, answer with plain text and no tool calls.`

// buildSystemPrompt assembles the session system instruction from the base
// agent prompt, any per-model additions, and the extracted project context.
func buildSystemPrompt(workDir, model, projectCtx string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(fmt.Sprintf("\n\nWorkspace root: %s", workDir))

	if extra := client.ModelPromptEnhancement(model); extra != "" {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}

	if projectCtx != "" {
		b.WriteString("\n\n## Project context\n\n")
		b.WriteString(projectCtx)
	}

	return b.String()
}

// projectContext extracts the workspace structure summary when enabled.
func projectContext(cfg *config.Config, workDir string) string {
	if cfg == nil || !cfg.Agent.ProjectContext {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), projectContextTimeout)
	defer cancel()
	return workspace.ExtractProjectStructure(ctx, workDir)
}
