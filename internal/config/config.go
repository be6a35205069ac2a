// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. Secrets (the LLM API
// key, the API auth token) are read from the environment, never from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	QA        QAConfig        `yaml:"qa"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RateLimitPerSec and RateLimitBurst configure the per-client token
	// bucket. A non-positive rate disables rate limiting.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// StorageConfig holds the path for the workspace database (directory tables
// and conversation history share one SQLite file).
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RetrievalConfig holds settings for the semantic-search service.
type RetrievalConfig struct {
	BaseURL string `yaml:"base_url"`
	// CollectionPrefix is prepended to the workspace id to form the
	// collection name, keeping workspaces isolated in the search index.
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSec       int    `yaml:"timeout_sec"`
}

// LLMConfig holds completion-model settings. The API key is taken from the
// GEMINI_API_KEY environment variable; when unset the server runs with the
// deterministic fallback answer path.
type LLMConfig struct {
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// QAConfig holds answering-pipeline settings.
type QAConfig struct {
	// ContextMessages is the default number of messages used as context
	// when a request does not specify max_sources.
	ContextMessages int `yaml:"context_messages"`
	// HistoryLimit caps how many conversation turns feed a follow-up prompt.
	HistoryLimit int `yaml:"history_limit"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
