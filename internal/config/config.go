// Package config loads worker configuration from an optional YAML file
// with CURIE_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Engine   EngineConfig   `koanf:"engine"`
	Storage  StorageConfig  `koanf:"storage"`
	Geo      GeoConfig      `koanf:"geo"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Listen  string        `koanf:"listen"`
	Timeout time.Duration `koanf:"timeout"`
}

type UpstreamConfig struct {
	URL string `koanf:"url"`
}

// EngineConfig addresses the inspection engine. Token is the opaque
// oracle capability forwarded with every inspect call.
type EngineConfig struct {
	URL       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	Token     string        `koanf:"token"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// GeoConfig controls whether edge-stamped geolocation headers are
// believed.
type GeoConfig struct {
	TrustHeaders bool `koanf:"trust"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// Load reads path (skipped when empty or missing) and then the
// environment, applying defaults for anything left unset.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// Environment overrides: CURIE_ENGINE_URL → engine.url
	if err := k.Load(env.Provider("CURIE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CURIE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.listen":  ":8080",
		"server.timeout": "30s",
		"engine.timeout": "1s",
		"storage.type":   "none",
		"log.level":      "info",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Upstream.URL == "" {
		return nil, fmt.Errorf("upstream.url is required")
	}
	if cfg.Engine.URL == "" {
		return nil, fmt.Errorf("engine.url is required")
	}

	return &cfg, nil
}
