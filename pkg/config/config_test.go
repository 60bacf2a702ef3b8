package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("ERPNEXT_URL", "https://erp.example.com/")
	t.Setenv("BOOKMAN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Default()
	require.NoError(t, err)

	require.Equal(t, "https://erp.example.com", cfg.ERPNextURL)
	require.Equal(t, "openai", cfg.AIProvider)
	require.Equal(t, "gpt-4o", cfg.OpenAIModel)
	require.Equal(t, "claude-sonnet-4-20250514", cfg.AnthropicModel)
	require.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	require.Equal(t, ":5000", cfg.Addr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Zero(t, cfg.MaxToolRounds)
}

func TestMissingERPNextURL(t *testing.T) {
	t.Setenv("ERPNEXT_URL", "")
	t.Setenv("BOOKMAN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Default()
	require.Error(t, err)
	require.Contains(t, err.Error(), "ERPNEXT_URL")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ERPNEXT_URL", "https://erp.example.com")
	t.Setenv("AI_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_MODEL", "claude-opus-4-20250514")
	t.Setenv("MAX_TOOL_ROUNDS", "8")
	t.Setenv("BOOKMAN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Default()
	require.NoError(t, err)

	// Provider names are normalized to lowercase.
	require.Equal(t, "anthropic", cfg.AIProvider)
	require.Equal(t, "claude-opus-4-20250514", cfg.AnthropicModel)
	require.Equal(t, 8, cfg.MaxToolRounds)
}

func TestInvalidMaxToolRounds(t *testing.T) {
	t.Setenv("ERPNEXT_URL", "https://erp.example.com")
	t.Setenv("MAX_TOOL_ROUNDS", "many")

	_, err := Default()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MAX_TOOL_ROUNDS")
}

func TestFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookman.yaml")

	require.NoError(t, os.WriteFile(path, []byte(
		"ai_provider: ollama\nollama_model: mistral\naddr: \":8080\"\n"), 0o644))

	t.Setenv("ERPNEXT_URL", "https://erp.example.com")
	t.Setenv("BOOKMAN_CONFIG", path)

	cfg, err := Default()
	require.NoError(t, err)

	// File values win over environment defaults.
	require.Equal(t, "ollama", cfg.AIProvider)
	require.Equal(t, "mistral", cfg.OllamaModel)
	require.Equal(t, ":8080", cfg.Addr)
}

func TestFileOverlayInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookman.yaml")

	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	t.Setenv("ERPNEXT_URL", "https://erp.example.com")
	t.Setenv("BOOKMAN_CONFIG", path)

	_, err := Default()
	require.Error(t, err)
}
