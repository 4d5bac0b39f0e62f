package tools

import (
	"context"

	"google.golang.org/genai"

	"termagent/internal/workspace"
)

// StructureTool summarizes the workspace: project tree plus per-file
// imports and declarations.
type StructureTool struct {
	workDir string
}

// NewStructureTool creates a StructureTool rooted at workDir.
func NewStructureTool(workDir string) *StructureTool {
	return &StructureTool{workDir: workDir}
}

func (t *StructureTool) Name() string {
	return "project_structure"
}

func (t *StructureTool) Description() string {
	return "Returns a summary of the workspace: the project tree plus imports, types and functions per source file. Heuristic, best-effort extraction."
}

func (t *StructureTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
			Required:   []string{},
		},
	}
}

type structureParams struct{}

func (t *StructureTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	return structureParams{}, nil
}

func (t *StructureTool) CreateInvocation(params ValidatedParams) Invocation {
	return &structureInvocation{workDir: t.workDir}
}

type structureInvocation struct {
	workDir string
}

func (inv *structureInvocation) Execute(ctx context.Context) ToolResult {
	return NewResult(workspace.ExtractProjectStructure(ctx, inv.workDir))
}
