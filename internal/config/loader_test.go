package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearKeyEnv blanks every variable the loader and the key lookup read,
// so tests are isolated from the developer's shell.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TERMAGENT_GEMINI_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func TestLoadReadsGoogleAPIKey(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GOOGLE_API_KEY", "from-google-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-google-env", cfg.API.GeminiKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoadKeyPrecedence(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("TERMAGENT_GEMINI_KEY", "from-termagent")
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("GOOGLE_API_KEY", "from-google")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-termagent", cfg.API.GeminiKey)
}

func TestValidateRejectsMissingGeminiKey(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.API.ActiveBackend = "gemini"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAuth)
}
