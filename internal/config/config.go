package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Storage   StorageConfig    `koanf:"storage"`
	Auth      AuthConfig       `koanf:"auth"`
	Providers []ProviderConfig `koanf:"providers"`
	Routing   RoutingConfig    `koanf:"routing"`
	Models    []ModelListItem  `koanf:"models"`
	Hooks     []HookConfig     `koanf:"hooks"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	Enabled bool           `koanf:"enabled"`
	Clients []ClientConfig `koanf:"clients"`
}

type ClientConfig struct {
	Name    string `koanf:"name"`
	KeyHash string `koanf:"key_hash"`
}

// ProviderConfig holds the settings for one upstream provider binding.
type ProviderConfig struct {
	Name    string            `koanf:"name"`
	Type    string            `koanf:"type"`
	APIKey  string            `koanf:"api_key"`
	BaseURL string            `koanf:"base_url"`
	Timeout string            `koanf:"timeout"` // duration string like "60s"
	Headers map[string]string `koanf:"headers"`
	// BotID is the default bot identifier for providers that address bots
	// rather than models, used when the model name carries no bot prefix.
	BotID string `koanf:"bot_id"`
	// User is the upstream user identifier for providers that require one
	// (e.g. the coze user field) when the request carries none.
	User string `koanf:"user"`
}

// TimeoutOrDefault parses the configured timeout, applying def when unset
// or unparseable.
func (p ProviderConfig) TimeoutOrDefault(def time.Duration) time.Duration {
	if p.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

type RoutingConfig struct {
	Rules           []RoutingRule `koanf:"rules"`
	DefaultProvider string        `koanf:"default_provider"`
}

type RoutingRule struct {
	ModelExact  string `koanf:"model_exact"`
	ModelPrefix string `koanf:"model_prefix"`
	Provider    string `koanf:"provider"`
}

type ModelListItem struct {
	ID      string `koanf:"id"`
	Object  string `koanf:"object"`
	OwnedBy string `koanf:"owned_by"`
	Created int64  `koanf:"created"`
}

// HookConfig configures one post-processing hook.
type HookConfig struct {
	Name    string            `koanf:"name"`
	Type    string            `koanf:"type"` // webhook
	URL     string            `koanf:"url"`
	Timeout string            `koanf:"timeout"`
	Headers map[string]string `koanf:"headers"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the given YAML file (missing file is fine)
// with RELAY_-prefixed environment variables layered on top.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// Environment variables override file config.
	if err := k.Load(env.Provider("RELAY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RELAY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute ${VAR} references in secrets so keys can live outside the file.
	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = substituteEnvVars(cfg.Providers[i].APIKey)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
