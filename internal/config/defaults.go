package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Artifact.Path == "" {
		cfg.Artifact.Path = "/usr/local/var/cinematch/data/movies.db"
	}
	if cfg.Artifact.Format == "" {
		cfg.Artifact.Format = "auto"
	}
	if cfg.Artifact.WatchDebounce == 0 {
		cfg.Artifact.WatchDebounce = 400 * time.Millisecond
	}
	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = 5
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = 50
	}
	if cfg.Recommend.Concurrency == 0 {
		cfg.Recommend.Concurrency = 5
	}
	if cfg.Metadata.BaseURL == "" {
		cfg.Metadata.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.Metadata.ImageBaseURL == "" {
		cfg.Metadata.ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	}
	if cfg.Metadata.Language == "" {
		cfg.Metadata.Language = "en-US"
	}
	if cfg.Metadata.MaxAttempts == 0 {
		cfg.Metadata.MaxAttempts = 5
	}
	if cfg.Metadata.RetryDelay == 0 {
		cfg.Metadata.RetryDelay = 2 * time.Second
	}
	if cfg.Metadata.MaxRetryDelay == 0 {
		cfg.Metadata.MaxRetryDelay = 30 * time.Second
	}
	if cfg.Metadata.Backoff == "" {
		cfg.Metadata.Backoff = "fixed"
	}
	if cfg.Metadata.Timeout == 0 {
		cfg.Metadata.Timeout = 10 * time.Second
	}
	if cfg.Metadata.Cache.Backend == "" {
		cfg.Metadata.Cache.Backend = "memory"
	}
	if cfg.Metadata.Cache.Size == 0 {
		cfg.Metadata.Cache.Size = 10000
	}
	if cfg.Metadata.Cache.TTL == 0 {
		cfg.Metadata.Cache.TTL = 24 * time.Hour
	}
	if cfg.Metadata.Breaker.MaxRequests == 0 {
		cfg.Metadata.Breaker.MaxRequests = 3
	}
	if cfg.Metadata.Breaker.Interval == 0 {
		cfg.Metadata.Breaker.Interval = time.Minute
	}
	if cfg.Metadata.Breaker.Timeout == 0 {
		cfg.Metadata.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Metadata.Breaker.MinRequests == 0 {
		cfg.Metadata.Breaker.MinRequests = 10
	}
	if cfg.Metadata.Breaker.FailureRatio == 0 {
		cfg.Metadata.Breaker.FailureRatio = 0.6
	}
}
