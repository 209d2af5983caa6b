package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	Host           string           `koanf:"host"`
	Port           string           `koanf:"port"`
	RequestTimeout time.Duration    `koanf:"request_timeout"`
	AdminAPIKey    string           `koanf:"admin_api_key"`
	Categories     []string         `koanf:"categories"`
	Log            LogConfig        `koanf:"log"`
	Storage        StorageConfig    `koanf:"storage"`
	Cassandra      CassandraConfig  `koanf:"cassandra"`
	Redis          RedisConfig      `koanf:"redis"`
	Classifier     ClassifierConfig `koanf:"classifier"`
	Cleanup        CleanupConfig    `koanf:"cleanup"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig selects the storage drivers
type StorageConfig struct {
	SessionDriver  string `koanf:"session_driver"`  // memory, cassandra
	PresenceDriver string `koanf:"presence_driver"` // memory, redis
}

// CassandraConfig holds Cassandra-specific configuration
type CassandraConfig struct {
	Hosts       []string      `koanf:"hosts"`
	Keyspace    string        `koanf:"keyspace"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	Consistency string        `koanf:"consistency"`
	Timeout     time.Duration `koanf:"timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// ClassifierConfig points at the external drawing classifier
type ClassifierConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// CleanupConfig drives the abandoned-lobby janitor
type CleanupConfig struct {
	Interval time.Duration `koanf:"interval"`
	MaxAge   time.Duration `koanf:"max_age"`
}

func defaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           "8080",
		RequestTimeout: 10 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			SessionDriver:  "memory",
			PresenceDriver: "memory",
		},
		Cassandra: CassandraConfig{
			Hosts:       []string{"localhost:9042"},
			Keyspace:    "sketchduel",
			Consistency: "QUORUM",
			Timeout:     5 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Classifier: ClassifierConfig{
			Timeout: 5 * time.Second,
		},
		Cleanup: CleanupConfig{
			Interval: 10 * time.Minute,
			MaxAge:   30 * time.Minute,
		},
	}
}

// envMappings maps environment variable names to config paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"host":                  "host",
	"port":                  "port",
	"request_timeout":       "request_timeout",
	"admin_api_key":         "admin_api_key",
	"categories":            "categories",
	"log_level":             "log.level",
	"log_format":            "log.format",
	"storage_driver":        "storage.session_driver",
	"presence_driver":       "storage.presence_driver",
	"cassandra_hosts":       "cassandra.hosts",
	"cassandra_keyspace":    "cassandra.keyspace",
	"cassandra_username":    "cassandra.username",
	"cassandra_password":    "cassandra.password",
	"cassandra_consistency": "cassandra.consistency",
	"cassandra_timeout":     "cassandra.timeout",
	"redis_addr":            "redis.addr",
	"redis_password":        "redis.password",
	"redis_db":              "redis.db",
	"classifier_url":        "classifier.url",
	"classifier_timeout":    "classifier.timeout",
	"cleanup_interval":      "cleanup.interval",
	"cleanup_max_age":       "cleanup.max_age",
}

// sliceConfigPaths are parsed from comma-separated env values
var sliceConfigPaths = []string{
	"cassandra.hosts",
	"categories",
}

// Load loads configuration from defaults and environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Storage.SessionDriver {
	case "memory", "cassandra":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.SessionDriver)
	}
	switch c.Storage.PresenceDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown PRESENCE_DRIVER %q", c.Storage.PresenceDriver)
	}
	if c.Storage.SessionDriver == "cassandra" && len(c.Cassandra.Hosts) == 0 {
		return fmt.Errorf("CASSANDRA_HOSTS is required when STORAGE_DRIVER=cassandra")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Cleanup.Interval <= 0 || c.Cleanup.MaxAge <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL and CLEANUP_MAX_AGE must be positive")
	}
	return nil
}

// Address returns the full address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func envTransform(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// processSliceFields splits comma-separated strings for known slice fields
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := parseList(raw)
		if len(parts) == 0 {
			k.Delete(path)
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// parseList parses a comma-separated list
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
