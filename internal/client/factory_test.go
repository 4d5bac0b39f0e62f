package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termagent/internal/config"
)

func scriptedFactoryConfig(t *testing.T) *config.Config {
	t.Helper()

	script := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(script, []byte("done"), 0644))

	cfg := config.DefaultConfig()
	cfg.API.ActiveBackend = string(BackendScripted)
	cfg.API.ScriptPath = script
	return cfg
}

func TestFactoryReusesClientPerWorkspaceAndBackend(t *testing.T) {
	cfg := scriptedFactoryConfig(t)
	factory := NewFactory()
	defer factory.InvalidateAll()

	root := t.TempDir()
	ctx := context.Background()

	first, err := factory.GetClient(ctx, root, cfg)
	require.NoError(t, err)
	second, err := factory.GetClient(ctx, root, cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := factory.GetClient(ctx, t.TempDir(), cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestFactoryInvalidateDropsCachedClient(t *testing.T) {
	cfg := scriptedFactoryConfig(t)
	factory := NewFactory()
	defer factory.InvalidateAll()

	root := t.TempDir()
	ctx := context.Background()

	first, err := factory.GetClient(ctx, root, cfg)
	require.NoError(t, err)

	factory.Invalidate(root, BackendScripted)

	second, err := factory.GetClient(ctx, root, cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestFactoryInvalidateAllEmptiesCache(t *testing.T) {
	cfg := scriptedFactoryConfig(t)
	factory := NewFactory()

	root := t.TempDir()
	ctx := context.Background()

	first, err := factory.GetClient(ctx, root, cfg)
	require.NoError(t, err)

	factory.InvalidateAll()

	second, err := factory.GetClient(ctx, root, cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
