// Package config provides configuration management for Penchant.
// It loads settings from an optional YAML file, then overlays environment
// variables with the PENCHANT_ prefix, and provides sensible defaults for
// all configuration options. Environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Penchant application.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig contains HTTP server configuration for the web chat.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)

	// RateLimit is the per-client request budget in requests per second
	// for the REST and websocket endpoints (default: 5).
	RateLimit float64 `yaml:"rate_limit"`
}

// StorageConfig selects and locates the preference store.
type StorageConfig struct {
	// Engine is the preference store backend: jsonfile or postgres
	// (default: jsonfile).
	Engine string `yaml:"engine"`

	// PreferencesPath is the JSON-file store location
	// (default: ./data/preferences.json).
	PreferencesPath string `yaml:"preferences_path"`

	// SessionLogPath is the SQLite session transcript database
	// (default: ./data/sessions.db). Empty disables session logging.
	SessionLogPath string `yaml:"session_log_path"`

	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`

	// MergeThreshold is the cosine similarity at or above which candidates
	// merge into existing records (default: 0.85).
	MergeThreshold float64 `yaml:"merge_threshold"`
}

// LLMConfig contains generation and embedding gateway configuration.
type LLMConfig struct {
	Provider             string        `yaml:"provider"`               // ollama or openai (default: ollama)
	OllamaURL            string        `yaml:"ollama_url"`             // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string        `yaml:"ollama_model"`           // Extraction model (default: qwen2.5:7b)
	OllamaEmbeddingModel string        `yaml:"ollama_embedding_model"` // Embedding model (default: nomic-embed-text)
	OpenAIAPIKey         string        `yaml:"openai_api_key"`
	OpenAIModel          string        `yaml:"openai_model"`           // default: gpt-4o-mini
	OpenAIEmbeddingModel string        `yaml:"openai_embedding_model"` // default: text-embedding-3-small
	Timeout              time.Duration `yaml:"-"`                      // Per-call gateway deadline, set via PENCHANT_LLM_TIMEOUT (default: 10s)
}

// SessionConfig tunes the elicitation dialogue.
type SessionConfig struct {
	WindowSize int `yaml:"window_size"` // Rolling extraction context in turns (default: 6)
	MaxTurns   int `yaml:"max_turns"`   // User-turn budget per session (default: 30)
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is non-empty, then PENCHANT_* environment variables on top.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Storage.MergeThreshold <= 0 || cfg.Storage.MergeThreshold > 1 {
		return nil, fmt.Errorf("config: merge threshold %v outside (0,1]", cfg.Storage.MergeThreshold)
	}
	return cfg, nil
}

// LoadFromEnv builds the configuration from defaults and environment
// variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      6464,
			Host:      "127.0.0.1",
			RateLimit: 5,
		},
		Storage: StorageConfig{
			Engine:          "jsonfile",
			PreferencesPath: "./data/preferences.json",
			SessionLogPath:  "./data/sessions.db",
			MergeThreshold:  0.85,
		},
		LLM: LLMConfig{
			Provider:             "ollama",
			OllamaURL:            "http://localhost:11434",
			OllamaModel:          "qwen2.5:7b",
			OllamaEmbeddingModel: "nomic-embed-text",
			OpenAIModel:          "gpt-4o-mini",
			OpenAIEmbeddingModel: "text-embedding-3-small",
			Timeout:              10 * time.Second,
		},
		Session: SessionConfig{
			WindowSize: 6,
			MaxTurns:   30,
		},
	}
}

// applyEnv overlays PENCHANT_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PENCHANT_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("PENCHANT_HOST", cfg.Server.Host)
	cfg.Server.RateLimit = getEnvFloat("PENCHANT_RATE_LIMIT", cfg.Server.RateLimit)

	cfg.Storage.Engine = getEnv("PENCHANT_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.PreferencesPath = getEnv("PENCHANT_PREFERENCES_PATH", cfg.Storage.PreferencesPath)
	cfg.Storage.SessionLogPath = getEnv("PENCHANT_SESSION_LOG_PATH", cfg.Storage.SessionLogPath)
	cfg.Storage.PostgresDSN = getEnv("PENCHANT_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.MergeThreshold = getEnvFloat("PENCHANT_MERGE_THRESHOLD", cfg.Storage.MergeThreshold)

	cfg.LLM.Provider = getEnv("PENCHANT_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("PENCHANT_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("PENCHANT_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OllamaEmbeddingModel = getEnv("PENCHANT_OLLAMA_EMBEDDING_MODEL", cfg.LLM.OllamaEmbeddingModel)
	cfg.LLM.OpenAIAPIKey = getEnv("PENCHANT_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("PENCHANT_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.OpenAIEmbeddingModel = getEnv("PENCHANT_OPENAI_EMBEDDING_MODEL", cfg.LLM.OpenAIEmbeddingModel)
	cfg.LLM.Timeout = getEnvDuration("PENCHANT_LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Session.WindowSize = getEnvInt("PENCHANT_WINDOW_SIZE", cfg.Session.WindowSize)
	cfg.Session.MaxTurns = getEnvInt("PENCHANT_MAX_TURNS", cfg.Session.MaxTurns)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value when unset or unparseable.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("10s", "1m") or
// returns a default value when unset or unparseable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
