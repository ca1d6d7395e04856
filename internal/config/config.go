// Package config loads oracle settings from defaults, an optional YAML file
// and the process environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderEcho      = "echo"
)

// DefaultDocumentURL is the lore document the Oracle answers from.
const DefaultDocumentURL = "https://docs.google.com/document/d/1zKVB97yASZQTTfjfsqL-NFZyVSIYAVyttKyqRVNvINg/edit?usp=sharing"

type Config struct {
	Addr     string         `yaml:"addr"`
	Log      LogConfig      `yaml:"log"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Document DocumentConfig `yaml:"document"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	// File, when set, receives a JSON copy of every record.
	File string `yaml:"file"`
}

type UpstreamConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	OllamaURL string `yaml:"ollama_url"`
	// Timeout bounds a whole relay call. Zero leaves it unbounded.
	Timeout time.Duration `yaml:"timeout"`
}

type DocumentConfig struct {
	URL        string        `yaml:"url"`
	ExportBase string        `yaml:"export_base"`
	Timeout    time.Duration `yaml:"timeout"`
}

type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

func Defaults() *Config {
	return &Config{
		Addr: "8080",
		Log:  LogConfig{Level: "info"},
		Upstream: UpstreamConfig{
			Provider:  ProviderAnthropic,
			Model:     "claude-3-5-sonnet-20241022",
			MaxTokens: 4000,
			OllamaURL: "http://localhost:11434",
		},
		Document: DocumentConfig{
			URL:        DefaultDocumentURL,
			ExportBase: "https://docs.google.com",
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Tracer: TracerConfig{Exporter: "noop"},
	}
}

// Load builds a Config. An empty path skips the file layer. A missing API
// key is not an error here: the relay reports it per request.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ApplyEnvOverrides(cfg *Config) {
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.Log.JSON = strings.ToLower(v) == "true"
	}
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Upstream.Provider = strings.ToLower(getEnv("ORACLE_PROVIDER", cfg.Upstream.Provider))
	cfg.Upstream.APIKey = getEnv("ANTHROPIC_API_KEY", cfg.Upstream.APIKey)
	cfg.Upstream.BaseURL = getEnv("ANTHROPIC_BASE_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.Model = getEnv("ORACLE_MODEL", cfg.Upstream.Model)
	if n, err := strconv.Atoi(os.Getenv("ORACLE_MAX_TOKENS")); err == nil {
		cfg.Upstream.MaxTokens = n
	}
	cfg.Upstream.OllamaURL = getEnv("OLLAMA_BASE_URL", cfg.Upstream.OllamaURL)
	if d, err := time.ParseDuration(os.Getenv("ORACLE_UPSTREAM_TIMEOUT")); err == nil {
		cfg.Upstream.Timeout = d
	}

	cfg.Document.URL = getEnv("ORACLE_DOC_URL", cfg.Document.URL)
	cfg.Document.ExportBase = getEnv("ORACLE_EXPORT_BASE", cfg.Document.ExportBase)

	switch v := strings.ToLower(os.Getenv("TRACING")); v {
	case "":
	case "false", "noop":
		cfg.Tracer.Enabled = false
	case "true", "stdout":
		cfg.Tracer.Enabled = true
		cfg.Tracer.Exporter = "stdout"
	default:
		cfg.Tracer.Enabled = true
		cfg.Tracer.Exporter = v
	}
}

// HasCredentials reports whether the configured provider can be called.
func (c *Config) HasCredentials() bool {
	if c.Upstream.Provider == ProviderAnthropic {
		return c.Upstream.APIKey != ""
	}
	return true
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
