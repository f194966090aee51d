// Package config loads configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all shell configuration.
type Config struct {
	// Target
	Bucket    string
	Endpoint  string
	Region    string
	Profile   string
	AccessKey string
	SecretKey string
	Unsigned  bool

	// Cache
	CacheTTL      time.Duration
	CacheDir      string
	CachePersist  bool
	FlushInterval time.Duration

	// Background crawl
	CrawlDepth   int
	CrawlWorkers int

	// Provider calls
	ProviderTimeout time.Duration

	// Shell
	HistoryFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics (empty disables the listener)
	MetricsAddr string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".bucketboss")

	return &Config{
		Bucket:    envOr("BUCKETBOSS_BUCKET", ""),
		Endpoint:  envOr("BUCKETBOSS_ENDPOINT", ""),
		Region:    envOr("BUCKETBOSS_REGION", "us-east-1"),
		Profile:   envOr("BUCKETBOSS_PROFILE", ""),
		AccessKey: envOr("BUCKETBOSS_ACCESS_KEY", ""),
		SecretKey: envOr("BUCKETBOSS_SECRET_KEY", ""),
		Unsigned:  envBool("BUCKETBOSS_UNSIGNED", false),

		CacheTTL:      envSeconds("BUCKETBOSS_CACHE_TTL", 21600),
		CacheDir:      envOr("BUCKETBOSS_CACHE_DIR", filepath.Join(stateDir, "cache")),
		CachePersist:  envBool("BUCKETBOSS_CACHE_PERSIST", true),
		FlushInterval: envSeconds("BUCKETBOSS_CACHE_FLUSH_INTERVAL", 300),

		CrawlDepth:   envInt("BUCKETBOSS_CRAWL_DEPTH", 2),
		CrawlWorkers: envInt("BUCKETBOSS_CRAWL_WORKERS", 16),

		ProviderTimeout: envSeconds("BUCKETBOSS_PROVIDER_TIMEOUT", 30),

		HistoryFile: envOr("BUCKETBOSS_HISTORY_FILE", filepath.Join(stateDir, "history")),

		LogLevel:  envOr("BUCKETBOSS_LOG_LEVEL", "info"),
		LogFormat: envOr("BUCKETBOSS_LOG_FORMAT", "console"),

		MetricsAddr: envOr("BUCKETBOSS_METRICS_ADDR", ""),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
