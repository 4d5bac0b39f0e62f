package config

import "time"

// Config is the main application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Model   ModelConfig   `yaml:"model"`
	Tools   ToolsConfig   `yaml:"tools"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`

	// Runtime version information
	Version string `yaml:"-"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	GeminiKey string `yaml:"gemini_key,omitempty"`
	OllamaKey string `yaml:"ollama_key,omitempty"` // Optional, for remote Ollama servers with auth

	// Ollama server URL (default: http://localhost:11434)
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"`

	// Active backend: gemini, ollama, scripted (default: gemini)
	ActiveBackend string `yaml:"active_backend"`

	// Script file for the scripted backend (replays canned responses)
	ScriptPath string `yaml:"script_path,omitempty"`

	Retry RetryConfig `yaml:"retry"`
}

// GetActiveBackend returns the configured backend name.
func (c *APIConfig) GetActiveBackend() string {
	if c.ActiveBackend != "" {
		return c.ActiveBackend
	}
	return "gemini"
}

// GetActiveKey returns the API key for the active backend.
func (c *APIConfig) GetActiveKey() string {
	switch c.GetActiveBackend() {
	case "gemini":
		return c.GeminiKey
	case "ollama":
		return c.OllamaKey
	}
	return ""
}

// RetryConfig holds retry settings for backend calls.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`  // Maximum retry attempts (default: 3)
	RetryDelay  time.Duration `yaml:"retry_delay"`  // Initial delay between retries (default: 1s)
	HTTPTimeout time.Duration `yaml:"http_timeout"` // HTTP request timeout (default: 120s)
}

// ModelConfig holds model generation settings.
type ModelConfig struct {
	Preset          string  `yaml:"preset"` // Model preset: fast, balanced, local
	Name            string  `yaml:"name"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Bash        BashConfig    `yaml:"bash"`
	AllowedDirs []string      `yaml:"allowed_dirs"` // Additional allowed directories besides the workspace root
}

// BashConfig holds shell tool settings.
type BashConfig struct {
	BlockedCommands []string `yaml:"blocked_commands"`
}

// AgentConfig holds orchestration loop settings.
type AgentConfig struct {
	MaxIterations  int  `yaml:"max_iterations"`  // Cap on model round-trips per turn (default: 25)
	ProjectContext bool `yaml:"project_context"` // Seed new sessions with the workspace structure
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			ActiveBackend: "gemini",
			OllamaBaseURL: "http://localhost:11434",
			Retry: RetryConfig{
				MaxRetries:  3,
				RetryDelay:  1 * time.Second,
				HTTPTimeout: 120 * time.Second,
			},
		},
		Model: ModelConfig{
			Name:            "gemini-3-flash-preview",
			Temperature:     1.0,
			MaxOutputTokens: 8192,
		},
		Tools: ToolsConfig{
			Timeout: 2 * time.Minute,
			Bash: BashConfig{
				BlockedCommands: []string{"rm -rf /", "mkfs"},
			},
		},
		Agent: AgentConfig{
			MaxIterations:  25,
			ProjectContext: true,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}
