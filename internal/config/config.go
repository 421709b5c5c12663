package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Logging LogConfig
	Storage StorageConfig
	Runner  RunnerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    string `envconfig:"PORT" default:"8080"`
	Host    string `envconfig:"HOST" default:"0.0.0.0"`
	URL     string `envconfig:"SERVER_URL" default:"http://localhost:8080"` // used by the submit client
	MaxBody int64  `envconfig:"MAX_BODY_BYTES" default:"1048576"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	LogDir     string `envconfig:"LOG_DIR" default:"./logs"`
	LedgerPath string `envconfig:"LEDGER_PATH" default:"./ledger.jsonl"`
	KeyDir     string `envconfig:"KEY_DIR" default:"./keys"`
}

// RunnerConfig holds pipeline execution defaults.
type RunnerConfig struct {
	Timeout time.Duration `envconfig:"RUN_TIMEOUT" default:"5m"`
	AgentID string        `envconfig:"AGENT_ID" default:"local-agent"`
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			Host:    "0.0.0.0",
			URL:     "http://localhost:8080",
			MaxBody: 1 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Storage: StorageConfig{
			LogDir:     "./logs",
			LedgerPath: "./ledger.jsonl",
			KeyDir:     "./keys",
		},
		Runner: RunnerConfig{
			Timeout: 5 * time.Minute,
			AgentID: "local-agent",
		},
	}
}
