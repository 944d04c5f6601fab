// Package config loads application settings from a YAML file with
// defaults applied after unmarshal. API keys are never stored in the file;
// adapters resolve them from the environment variables named here.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig configures nearest-neighbor search and filtering.
type RetrievalConfig struct {
	K              int     `yaml:"k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// EmbedderConfig selects and configures the embedding service.
type EmbedderConfig struct {
	Provider    string `yaml:"provider"` // "ollama" or "openai"
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "ollama" or "claude"
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// MemoryConfig controls conversation-history injection.
type MemoryConfig struct {
	Enabled  *bool `yaml:"enabled"` // nil means enabled
	MaxTurns int   `yaml:"max_turns"`
}

// IsEnabled reports whether conversation memory is on. Unset means on.
func (m MemoryConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig    `yaml:"server"`
	DocumentsPath string          `yaml:"documents_path"`
	StorePath     string          `yaml:"store_path"`
	HistoryPath   string          `yaml:"history_path"`
	Chunking      ChunkingConfig  `yaml:"chunking"`
	Retrieval     RetrievalConfig `yaml:"retrieval"`
	Embedder      EmbedderConfig  `yaml:"embedder"`
	LLM           LLMConfig       `yaml:"llm"`
	Memory        MemoryConfig    `yaml:"memory"`
	Watch         bool            `yaml:"watch"`
	LogLevel      string          `yaml:"log_level"`
}

// Load reads a config from the given path. A missing file yields defaults.
// Environment variables override file settings, so deployments can tune the
// pipeline without editing the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, cfg.Validate()
}

// applyEnvOverrides layers environment variables over the file settings.
func applyEnvOverrides(cfg *Config) error {
	envString("SERVER_HOST", &cfg.Server.Host)
	envString("DOCUMENTS_PATH", &cfg.DocumentsPath)
	envString("VECTOR_STORE_PATH", &cfg.StorePath)
	envString("HISTORY_PATH", &cfg.HistoryPath)
	envString("EMBEDDER_PROVIDER", &cfg.Embedder.Provider)
	envString("EMBEDDING_MODEL", &cfg.Embedder.Model)
	envString("LLM_PROVIDER", &cfg.LLM.Provider)
	envString("LLM_MODEL", &cfg.LLM.Model)
	envString("LOG_LEVEL", &cfg.LogLevel)

	if err := envInt("SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := envInt("CHUNK_SIZE", &cfg.Chunking.Size); err != nil {
		return err
	}
	if err := envInt("CHUNK_OVERLAP", &cfg.Chunking.Overlap); err != nil {
		return err
	}
	if err := envInt("RETRIEVAL_K", &cfg.Retrieval.K); err != nil {
		return err
	}
	return envFloat("SCORE_THRESHOLD", &cfg.Retrieval.ScoreThreshold)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return &entities.ConfigurationError{Reason: fmt.Sprintf("%s must be an integer, got %q", key, v)}
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return &entities.ConfigurationError{Reason: fmt.Sprintf("%s must be a number, got %q", key, v)}
	}
	*dst = parsed
	return nil
}

// Validate checks the settings that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return &entities.ConfigurationError{
			Reason: fmt.Sprintf("chunking.size must be positive, got %d", c.Chunking.Size),
		}
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return &entities.ConfigurationError{
			Reason: fmt.Sprintf("chunking.overlap must be in [0, chunking.size), got %d", c.Chunking.Overlap),
		}
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return &entities.ConfigurationError{
			Reason: fmt.Sprintf("retrieval.score_threshold must be in [0,1], got %g", c.Retrieval.ScoreThreshold),
		}
	}
	switch c.Embedder.Provider {
	case "ollama", "openai":
	default:
		return &entities.ConfigurationError{
			Reason: fmt.Sprintf("unknown embedder provider %q", c.Embedder.Provider),
		}
	}
	switch c.LLM.Provider {
	case "ollama", "claude":
	default:
		return &entities.ConfigurationError{
			Reason: fmt.Sprintf("unknown llm provider %q", c.LLM.Provider),
		}
	}
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.DocumentsPath == "" {
		cfg.DocumentsPath = "./documents"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "./vector_store"
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = "./history.jsonl"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 800
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 100
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Retrieval.ScoreThreshold == 0 {
		cfg.Retrieval.ScoreThreshold = 0.3
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "ollama"
	}
	if cfg.Embedder.Provider == "openai" && cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 60
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Provider == "claude" && cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 300
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.Memory.MaxTurns == 0 {
		cfg.Memory.MaxTurns = 6
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
