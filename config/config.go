// Package config loads txscope settings from layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file
//  3. Environment: TXSCOPE_ variables, with "__" separating nested keys
//
// TXSCOPE_POOLS__MAIN__HOST=db.internal sets pools.main.host, and
// TXSCOPE_LOGGING__LEVEL=debug sets logging.level.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/dberr"
	"github.com/Konsultn-Engineering/txscope/logging"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "TXSCOPE_"
	// ConfigPathEnvVar names a config file overriding DefaultConfigPaths.
	ConfigPathEnvVar = "TXSCOPE_CONFIG"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"txscope.yaml",
	"txscope.yml",
	"/etc/txscope/config.yaml",
}

type Config struct {
	// Pools maps pool names to connection settings.
	Pools map[string]connector.Config `koanf:"pools" validate:"dive"`
	// DefaultPool names the pool used by the debug endpoints.
	DefaultPool string         `koanf:"default_pool"`
	Logging     logging.Config `koanf:"logging"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Server      ServerConfig   `koanf:"server"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	// PublishInterval controls how often pool gauges are refreshed.
	PublishInterval time.Duration `koanf:"publish_interval" validate:"gte=0"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

func defaultConfig() *Config {
	return &Config{
		Pools:       map[string]connector.Config{},
		DefaultPool: "default",
		Logging:     logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 15 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads defaults, then the YAML file at path (or the first of
// DefaultConfigPaths that exists when path is empty), then the environment,
// and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if cfg.Pools == nil {
		cfg.Pools = map[string]connector.Config{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps TXSCOPE_POOLS__MAIN__SSL_MODE to
// pools.main.ssl_mode. The config path variable is skipped.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// Validate checks struct tags on every section and that DefaultPool, when
// pools are configured, names one of them.
func (c *Config) Validate() error {
	if err := connector.ValidateStruct(c); err != nil {
		return err
	}
	if len(c.Pools) > 0 && c.DefaultPool != "" {
		if _, ok := c.Pools[c.DefaultPool]; !ok {
			return &dberr.ConfigurationError{
				Setting: "default_pool",
				Reason:  fmt.Sprintf("pool %q is not configured", c.DefaultPool),
			}
		}
	}
	return nil
}
