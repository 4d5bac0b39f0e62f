package security

import (
	"fmt"
	"os"
	"strings"
)

// KeySource records where an API key was loaded from.
type KeySource string

const (
	KeySourceEnvironment KeySource = "environment"
	KeySourceConfig      KeySource = "config"
	KeySourceNotSet      KeySource = "not_set"
)

// LoadedKey is an API key plus its source, for safe logging.
type LoadedKey struct {
	Value  string
	Source KeySource
}

// IsSet reports whether the key has a value.
func (k *LoadedKey) IsSet() bool {
	return k != nil && k.Value != ""
}

// String hides the key value, showing source and a short prefix only.
func (k *LoadedKey) String() string {
	if !k.IsSet() {
		return "LoadedKey{Source: not_set}"
	}
	prefix := k.Value
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("LoadedKey{Source: %s, Value: %s...}", k.Source, prefix)
}

// GetAPIKey loads a key from the listed environment variables (in priority
// order), falling back to the config file value. Environment wins so keys
// never have to live in configs.
func GetAPIKey(envVarNames []string, configValue string) *LoadedKey {
	for _, envVar := range envVarNames {
		if value := os.Getenv(envVar); value != "" {
			return &LoadedKey{Value: value, Source: KeySourceEnvironment}
		}
	}
	if configValue != "" {
		return &LoadedKey{Value: configValue, Source: KeySourceConfig}
	}
	return &LoadedKey{Source: KeySourceNotSet}
}

// GetGeminiKey loads the Gemini API key. TERMAGENT_GEMINI_KEY takes
// priority, then the generic GEMINI_API_KEY and GOOGLE_API_KEY.
func GetGeminiKey(configKey string) *LoadedKey {
	return GetAPIKey([]string{
		"TERMAGENT_GEMINI_KEY",
		"GEMINI_API_KEY",
		"GOOGLE_API_KEY",
	}, configKey)
}

// GetOllamaKey loads the optional Ollama key. Local servers need none;
// remote ones may require it.
func GetOllamaKey(configKey string) *LoadedKey {
	return GetAPIKey([]string{
		"TERMAGENT_OLLAMA_KEY",
		"OLLAMA_API_KEY",
	}, configKey)
}

// MaskKey masks a key for display: first 4 and last 4 characters kept.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// ValidateKeyFormat rejects obviously invalid or placeholder keys.
func ValidateKeyFormat(key string) error {
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if len(key) < 10 {
		return fmt.Errorf("API key too short (expected at least 10 characters, got %d)", len(key))
	}
	lower := strings.ToLower(key)
	for _, placeholder := range []string{"your-api-key", "your_api_key", "sk-xxxx", "<insert-key>"} {
		if strings.Contains(lower, placeholder) {
			return fmt.Errorf("API key appears to be a placeholder: %s", placeholder)
		}
	}
	return nil
}
