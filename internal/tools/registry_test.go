package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/genai"
)

// stubTool is a minimal tool for registry tests.
type stubTool struct {
	name string
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }

func (t *stubTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: t.name, Description: "stub"}
}

func (t *stubTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	return nil, nil
}

func (t *stubTool) CreateInvocation(params ValidatedParams) Invocation {
	return &stubInvocation{}
}

type stubInvocation struct{}

func (inv *stubInvocation) Execute(ctx context.Context) ToolResult {
	return NewResult("ok")
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubTool{name: "alpha"}))

	tool, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", tool.Name())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubTool{name: "alpha"}))

	err := reg.Register(&stubTool{name: "alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// The original registration survives.
	assert.Equal(t, []string{"alpha"}, reg.Names())
}

func TestRegistryDeclarationsPreserveRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, reg.Register(&stubTool{name: name}))
	}

	decls := reg.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "charlie", decls[0].Name)
	assert.Equal(t, "alpha", decls[1].Name)
	assert.Equal(t, "bravo", decls[2].Name)

	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, reg.Names())
}

func TestRegistryGenaiToolsWrapsDeclarations(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubTool{name: "alpha"}))

	wrapped := reg.GenaiTools()
	require.Len(t, wrapped, 1)
	require.Len(t, wrapped[0].FunctionDeclarations, 1)
	assert.Equal(t, "alpha", wrapped[0].FunctionDeclarations[0].Name)
}
