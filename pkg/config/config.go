// Package config loads runtime settings from the environment (with .env
// autoloading) and an optional bookman.yaml overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	// ERPNext
	ERPNextURL      string `yaml:"erpnext_url"`
	ERPNextUser     string `yaml:"erpnext_user"`
	ERPNextPassword string `yaml:"erpnext_password"`

	// Model provider: openai, azure, anthropic, ollama
	AIProvider string `yaml:"ai_provider"`

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`

	AzureEndpoint   string `yaml:"azure_endpoint"`
	AzureAPIKey     string `yaml:"azure_api_key"`
	AzureAPIVersion string `yaml:"azure_api_version"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`

	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`

	// Agent
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// Server
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

// Default loads configuration: .env (if present), then environment
// variables, then a bookman.yaml overlay for any field it sets.
func Default() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		ERPNextURL:      strings.TrimRight(os.Getenv("ERPNEXT_URL"), "/"),
		ERPNextUser:     os.Getenv("ERPNEXT_USER"),
		ERPNextPassword: os.Getenv("ERPNEXT_PASSWORD"),

		AIProvider: envOr("AI_PROVIDER", "openai"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  envOr("OPENAI_MODEL", "gpt-4o"),

		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureAPIVersion: envOr("AZURE_OPENAI_API_VERSION", "2025-01-01-preview"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),

		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envOr("OLLAMA_MODEL", "llama3"),

		Addr:     envOr("ADDR", ":5000"),
		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if v := os.Getenv("MAX_TOOL_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)

		if err != nil {
			return nil, fmt.Errorf("invalid MAX_TOOL_ROUNDS %q: %w", v, err)
		}

		cfg.MaxToolRounds = n
	}

	if err := applyFile(cfg, envOr("BOOKMAN_CONFIG", "bookman.yaml")); err != nil {
		return nil, err
	}

	cfg.AIProvider = strings.ToLower(cfg.AIProvider)
	cfg.ERPNextURL = strings.TrimRight(cfg.ERPNextURL, "/")

	if cfg.ERPNextURL == "" {
		return nil, fmt.Errorf("ERPNEXT_URL is required")
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)

	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
