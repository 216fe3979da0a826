// Package config loads the agent's YAML configuration and applies
// environment-variable overrides, mirroring how the cmd
// entrypoint layers os.Getenv reads on top of defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	LLM     LLMConfig     `yaml:"llm"`
	Catalog CatalogConfig `yaml:"catalog"`
	Disambig DisambigConfig `yaml:"disambig"`
	Session SessionConfig `yaml:"session"`
}

// HTTPConfig controls the one-endpoint HTTP adapter.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LLMConfig controls the external completion endpoint and retry policy.
type LLMConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	RatePerSec   float64       `yaml:"rate_per_sec"`
	PromptAssets string        `yaml:"prompt_assets_dir"`
}

// CatalogConfig points at the static universe/alias CSV files.
type CatalogConfig struct {
	KOSPICSV string `yaml:"kospi_csv"`
	KOSDAQCSV string `yaml:"kosdaq_csv"`
	AliasCSV string `yaml:"alias_csv"`
}

// DisambigConfig tunes the ticker disambiguation pipeline.
type DisambigConfig struct {
	TopKFuzzy        int     `yaml:"top_k_fuzzy"`
	TopKEmbed        int     `yaml:"top_k_embed"`
	ConfidenceThresh float64 `yaml:"confidence_threshold"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	Backend    string        `yaml:"backend"` // "memory" | "redis"; cmd/agent rejects any other value
	RedisAddr  string        `yaml:"redis_addr"`
	PostgresDSN string       `yaml:"postgres_dsn"`
	TTL        time.Duration `yaml:"ttl"`
}

// Default returns a configuration with the documented disambiguation
// defaults (K_fuzzy=3, K_embed=3, CONF_THRESHOLD=0.82) and sane server
// timeouts.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		LLM: LLMConfig{
			Timeout:      40 * time.Second,
			MaxRetries:   3,
			BackoffBase:  1 * time.Second,
			RatePerSec:   5,
			PromptAssets: "assets/prompts",
		},
		Catalog: CatalogConfig{
			KOSPICSV:  "assets/kospi.csv",
			KOSDAQCSV: "assets/kosdaq.csv",
			AliasCSV:  "assets/alias.csv",
		},
		Disambig: DisambigConfig{
			TopKFuzzy:        3,
			TopKEmbed:        3,
			ConfidenceThresh: 0.82,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     30 * time.Minute,
		},
	}
}

// Load reads a YAML file into Default() and then applies environment
// overrides for anything that shouldn't live in a committed file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Session.RedisAddr = v
		if cfg.Session.Backend == "memory" {
			cfg.Session.Backend = "redis"
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Session.PostgresDSN = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
}

// APIKey resolves the LLM bearer token from the configured env var, or
// falls back to LLM_API_KEY.
func (c LLMConfig) APIKey() string {
	name := c.APIKeyEnv
	if name == "" {
		name = "LLM_API_KEY"
	}
	return os.Getenv(name)
}
