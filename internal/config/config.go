// Package config provides configuration loading and structs for the cinematch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Recommend RecommendConfig `yaml:"recommend"`
	Metadata  MetadataConfig  `yaml:"metadata"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArtifactConfig points at the precomputed catalog and similarity matrix.
type ArtifactConfig struct {
	// Path is a directory (catalog.jsonl + similarity.f32) or a SQLite file.
	Path string `yaml:"path"`
	// Format is auto, dir or sqlite.
	Format string `yaml:"format"`
	// Watch reloads the artifact when its files change.
	Watch bool `yaml:"watch"`
	// WatchDebounce is how long to wait for writes to settle before reloading.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// RecommendConfig holds ranking defaults.
type RecommendConfig struct {
	DefaultK    int   `yaml:"default_k"`
	MaxK        int   `yaml:"max_k"`
	Concurrency int   `yaml:"concurrency"`
	Enrich      *bool `yaml:"enrich"`
}

// EnrichOrDefault returns whether recommendations are enriched; defaults to true when unset.
func (r *RecommendConfig) EnrichOrDefault() bool {
	if r.Enrich != nil {
		return *r.Enrich
	}
	return true
}

// MetadataConfig holds TMDb client settings.
type MetadataConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BaseURL       string        `yaml:"base_url"`
	ImageBaseURL  string        `yaml:"image_base_url"`
	APIKey        string        `yaml:"api_key"`
	Language      string        `yaml:"language"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	// Backoff is fixed or exponential.
	Backoff   string        `yaml:"backoff"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Cache     CacheConfig   `yaml:"cache"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// CacheConfig selects the metadata cache backend.
type CacheConfig struct {
	// Backend is memory, redis or none.
	Backend   string        `yaml:"backend"`
	Size      int           `yaml:"size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
}

// BreakerConfig holds circuit breaker settings for the metadata API.
type BreakerConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
}

// EnabledOrDefault returns whether the breaker is enabled; defaults to true when unset.
func (b *BreakerConfig) EnabledOrDefault() bool {
	if b.Enabled != nil {
		return *b.Enabled
	}
	return true
}

// Environment variables that override file settings.
const (
	EnvAPIKey    = "TMDB_API_KEY"
	EnvRedisAddr = "CINEMATCH_REDIS_ADDR"
	EnvArtifact  = "CINEMATCH_ARTIFACT"
	EnvPort      = "CINEMATCH_PORT"
)

// Load reads and parses the config file at path, expands paths, applies
// environment overrides and defaults. Returns an error if the file cannot be
// read or parsed, or the result is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Artifact.Path = expandPath(cfg.Artifact.Path, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config built from defaults and environment variables only.
// Metadata enrichment is enabled when an API key is present in the environment.
func Default() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Metadata.APIKey != "" {
		cfg.Metadata.Enabled = true
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Metadata.APIKey = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Metadata.Cache.RedisAddr = v
	}
	if v := os.Getenv(EnvArtifact); v != "" {
		cfg.Artifact.Path = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Artifact.Format {
	case "auto", "dir", "sqlite":
	default:
		return fmt.Errorf("artifact.format must be auto, dir or sqlite, got %q", c.Artifact.Format)
	}
	if c.Recommend.MaxK < c.Recommend.DefaultK {
		return fmt.Errorf("recommend.max_k (%d) is smaller than recommend.default_k (%d)", c.Recommend.MaxK, c.Recommend.DefaultK)
	}
	if c.Metadata.Enabled && c.Metadata.APIKey == "" {
		return fmt.Errorf("metadata is enabled but no API key is set (metadata.api_key or %s)", EnvAPIKey)
	}
	switch c.Metadata.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("metadata.backoff must be fixed or exponential, got %q", c.Metadata.Backoff)
	}
	switch c.Metadata.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Metadata.Cache.RedisAddr == "" {
			return fmt.Errorf("metadata.cache.backend is redis but no redis_addr is set (or %s)", EnvRedisAddr)
		}
	default:
		return fmt.Errorf("metadata.cache.backend must be memory, redis or none, got %q", c.Metadata.Cache.Backend)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
