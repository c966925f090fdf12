// Package config loads and validates runtime configuration at startup.
// Fail-fast: if a required variable is missing, the process exits before
// any pipeline phase starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the ingestion service.
// Construction has no side effects; Initialize performs the only
// filesystem mutation once, at startup.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// External job-search API
	APIBaseURL   string
	APIKey       string
	APIKeyHeader string
	APICountry   string
	Provider     string

	// Raw payload backup
	RawDataDir string

	// Rate limiting
	MaxCallsPerMinute  int
	MaxCallsPerHour    int
	ConcurrentRequests int
	BackoffMultiplier  float64
	MaxBackoffSeconds  float64

	// Collector
	RateLimitCooldown time.Duration // sleep before retrying a 429'd page

	// Processor
	MinDescriptionLength int

	// Duplicate detection
	SimilarityThreshold float64
	CandidateLimit      int

	// Orchestrator
	MaxConcurrentProcessing int

	// Scheduler
	JobsFile string // optional YAML job definitions; built-ins when empty

	// Development mode switches the zap encoder and gin mode.
	Development bool
}

// Load reads .env (when present) and environment variables, returning a
// validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("INGEST_PORT", "8082"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		APIBaseURL:              getEnv("JOB_API_BASE_URL", "https://jsearch.p.rapidapi.com"),
		APIKey:                  os.Getenv("JOB_API_KEY"),
		APIKeyHeader:            getEnv("JOB_API_KEY_HEADER", "X-RapidAPI-Key"),
		APICountry:              getEnv("JOB_API_COUNTRY", "us"),
		Provider:                getEnv("JOB_API_PROVIDER", "jsearch"),
		RawDataDir:              getEnv("RAW_DATA_DIR", "data/raw"),
		RateLimitCooldown:       60 * time.Second,
		MinDescriptionLength:    50,
		SimilarityThreshold:     0.85,
		CandidateLimit:          10,
		MaxConcurrentProcessing: 3,
		MaxCallsPerMinute:       10,
		MaxCallsPerHour:         300,
		ConcurrentRequests:      3,
		BackoffMultiplier:       2.0,
		MaxBackoffSeconds:       300,
		JobsFile:                os.Getenv("INGEST_JOBS_FILE"),
		Development:             os.Getenv("INGEST_ENV") != "production",
	}

	var err error
	if cfg.MaxCallsPerMinute, err = intEnv("RATE_MAX_CALLS_PER_MINUTE", cfg.MaxCallsPerMinute); err != nil {
		return nil, err
	}
	if cfg.MaxCallsPerHour, err = intEnv("RATE_MAX_CALLS_PER_HOUR", cfg.MaxCallsPerHour); err != nil {
		return nil, err
	}
	if cfg.ConcurrentRequests, err = intEnv("RATE_CONCURRENT_REQUESTS", cfg.ConcurrentRequests); err != nil {
		return nil, err
	}
	if cfg.MinDescriptionLength, err = intEnv("MIN_DESCRIPTION_LENGTH", cfg.MinDescriptionLength); err != nil {
		return nil, err
	}
	if cfg.CandidateLimit, err = intEnv("DEDUP_CANDIDATE_LIMIT", cfg.CandidateLimit); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentProcessing, err = intEnv("MAX_CONCURRENT_PROCESSING", cfg.MaxConcurrentProcessing); err != nil {
		return nil, err
	}
	if cfg.SimilarityThreshold, err = floatEnv("DEDUP_SIMILARITY_THRESHOLD", cfg.SimilarityThreshold); err != nil {
		return nil, err
	}
	if cfg.BackoffMultiplier, err = floatEnv("RATE_BACKOFF_MULTIPLIER", cfg.BackoffMultiplier); err != nil {
		return nil, err
	}
	if cfg.MaxBackoffSeconds, err = floatEnv("RATE_MAX_BACKOFF_SECONDS", cfg.MaxBackoffSeconds); err != nil {
		return nil, err
	}
	if s := os.Getenv("RATE_LIMIT_COOLDOWN_SECONDS"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("RATE_LIMIT_COOLDOWN_SECONDS must be a positive integer, got %q", s)
		}
		cfg.RateLimitCooldown = time.Duration(secs) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("JOB_API_KEY is required")
	}
	if c.MaxCallsPerMinute < 1 || c.MaxCallsPerHour < 1 {
		return fmt.Errorf("rate limits must be positive (minute=%d hour=%d)", c.MaxCallsPerMinute, c.MaxCallsPerHour)
	}
	if c.ConcurrentRequests < 1 {
		return fmt.Errorf("RATE_CONCURRENT_REQUESTS must be positive, got %d", c.ConcurrentRequests)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("DEDUP_SIMILARITY_THRESHOLD must be in (0,1], got %v", c.SimilarityThreshold)
	}
	if c.RawDataDir == "" {
		return fmt.Errorf("RAW_DATA_DIR must not be empty")
	}
	return nil
}

// Initialize performs startup side effects: it creates the raw backup
// directory. Kept separate from Load so construction stays pure.
func (c *Config) Initialize() error {
	if err := os.MkdirAll(filepath.Clean(c.RawDataDir), 0o755); err != nil {
		return fmt.Errorf("create raw data dir %q: %w", c.RawDataDir, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return v, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return v, nil
}
