package client

import (
	"context"
	"fmt"
	"sync"

	"termagent/internal/config"
	"termagent/internal/logging"
	"termagent/internal/security"
)

// NewClient creates a client for the configured backend. This is the
// main entry point for one-off client creation; use a Factory when
// clients should be cached across sessions.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	backend := cfg.API.GetActiveBackend()

	logging.Debug("creating client",
		"backend", backend,
		"model", cfg.Model.Name,
		"preset", cfg.Model.Preset)

	switch BackendKind(backend) {
	case BackendGemini:
		return NewGeminiClient(ctx, cfg)
	case BackendOllama:
		return newOllamaClientFromConfig(cfg)
	case BackendScripted:
		if cfg.API.ScriptPath == "" {
			return nil, fmt.Errorf("scripted backend requires api.script_path")
		}
		return NewScriptedClient(cfg.API.ScriptPath)
	default:
		return nil, fmt.Errorf("unknown backend %q (expected gemini, ollama or scripted)", backend)
	}
}

// newOllamaClientFromConfig creates an Ollama client for local inference.
func newOllamaClientFromConfig(cfg *config.Config) (Client, error) {
	loadedKey := security.GetOllamaKey(cfg.API.OllamaKey)
	if loadedKey.IsSet() {
		logging.Debug("loaded Ollama API key",
			"source", loadedKey.Source,
			"model", cfg.Model.Name)
	}

	baseURL := cfg.API.OllamaBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return NewOllamaClient(OllamaConfig{
		BaseURL:     baseURL,
		APIKey:      loadedKey.Value,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxOutputTokens,
		HTTPTimeout: cfg.API.Retry.HTTPTimeout,
		MaxRetries:  cfg.API.Retry.MaxRetries,
		RetryDelay:  cfg.API.Retry.RetryDelay,
	})
}

// factoryKey identifies a cached client: one per workspace and backend.
type factoryKey struct {
	workspaceRoot string
	backend       BackendKind
}

// Factory caches clients per (workspace root, backend) pair. A config
// change with the same key still hits the cache, so callers must
// Invalidate after mutating backend-relevant configuration.
type Factory struct {
	mu    sync.Mutex
	cache map[factoryKey]Client
}

// NewFactory creates an empty client factory.
func NewFactory() *Factory {
	return &Factory{
		cache: make(map[factoryKey]Client),
	}
}

// GetClient returns a cached client for the workspace and configured
// backend, creating one on first use.
func (f *Factory) GetClient(ctx context.Context, workspaceRoot string, cfg *config.Config) (Client, error) {
	key := factoryKey{
		workspaceRoot: workspaceRoot,
		backend:       BackendKind(cfg.API.GetActiveBackend()),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[key]; ok {
		return c, nil
	}

	c, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.cache[key] = c
	return c, nil
}

// Invalidate drops the cached client for one workspace and backend,
// closing it. The next GetClient builds a fresh one.
func (f *Factory) Invalidate(workspaceRoot string, backend BackendKind) {
	key := factoryKey{workspaceRoot: workspaceRoot, backend: backend}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[key]; ok {
		if err := c.Close(); err != nil {
			logging.Warn("failed to close client", "backend", backend, "error", err)
		}
		delete(f.cache, key)
	}
}

// InvalidateAll drops every cached client.
func (f *Factory) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, c := range f.cache {
		if err := c.Close(); err != nil {
			logging.Warn("failed to close client", "backend", key.backend, "error", err)
		}
		delete(f.cache, key)
	}
}
