// Package config loads the shopagent configuration from YAML with
// environment-variable expansion. Credentials are never defaulted:
// the database URL and the model API key must come from the
// environment or the config file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Executor ExecutorConfig `yaml:"executor"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
}

// ExecutorConfig covers both roles: Listen is where `shopagent
// executor` serves, URL is where `shopagent serve` forwards tool calls
// when remote execution is enabled. An empty URL means tools run
// in-process.
type ExecutorConfig struct {
	Listen  string        `yaml:"listen"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SessionConfig tunes the turn engine. DisableProductPreload is
// phrased negatively so the zero value keeps catalog preloading on.
type SessionConfig struct {
	MaxToolRounds         int  `yaml:"max_tool_rounds"`
	DisableProductPreload bool `yaml:"disable_product_preload"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file. ${VAR} references in
// the file are expanded from the environment before decoding, which is
// how credentials reach the config without being written into it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Executor.Listen == "" {
		cfg.Executor.Listen = "0.0.0.0:8090"
	}
	if cfg.Executor.Timeout == 0 {
		cfg.Executor.Timeout = 30 * time.Second
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "google"
	}
	if cfg.Session.MaxToolRounds == 0 {
		cfg.Session.MaxToolRounds = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("SHOPAGENT_DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
}

// ValidateForServe checks the fields the gateway needs.
func (c *Config) ValidateForServe() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required (google, anthropic or openai)")
	}
	if c.Executor.URL == "" && c.Database.URL == "" {
		return fmt.Errorf("database.url or SHOPAGENT_DATABASE_URL is required when tools run in-process")
	}
	return nil
}

// ValidateForExecutor checks the fields the executor needs.
func (c *Config) ValidateForExecutor() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url or SHOPAGENT_DATABASE_URL is required")
	}
	return nil
}
