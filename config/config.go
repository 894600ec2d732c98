package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds service configuration for scraping, uploading, and serving.
type Config struct {
	Addr     string
	LogLevel string

	// Destination shop (GraphQL Admin API).
	ShopDomain      string
	ShopAccessToken string
	ShopAPIVersion  string

	// Source storefront pagination.
	PageSize        int
	MaxPages        int
	PageDelay       time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	Timeout         time.Duration
	ChunkSize       int
	DedupeMaxSize   int
	UserAgent       string

	// Batch uploads.
	BatchSize          int
	BatchDelay         time.Duration
	ImageSettleDelay   time.Duration
	ExportBatchSize    int
	PipelineBufferSize int

	HistoryDB string
}

// DefaultConfig returns conservative defaults that keep the storefront's
// implicit rate limit happy.
func DefaultConfig() *Config {
	return &Config{
		Addr:               ":8080",
		LogLevel:           "info",
		ShopAPIVersion:     "2024-10",
		PageSize:           250,
		MaxPages:           100,
		PageDelay:          3 * time.Second,
		MaxRetries:         5,
		RetryBackoff:       time.Second,
		RetryBackoffMax:    60 * time.Second,
		Timeout:            30 * time.Second,
		ChunkSize:          100,
		DedupeMaxSize:      100000,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		BatchSize:          10,
		BatchDelay:         time.Second,
		ImageSettleDelay:   500 * time.Millisecond,
		ExportBatchSize:    64,
		PipelineBufferSize: 512,
		HistoryDB:          "data/history.db",
	}
}

// Load reads an optional .env file and overlays environment variables on
// the defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v, ok := EnvString("ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := EnvString("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := EnvString("SHOP_DOMAIN"); ok {
		cfg.ShopDomain = v
	}
	if v, ok := EnvString("SHOP_ACCESS_TOKEN"); ok {
		cfg.ShopAccessToken = v
	}
	if v, ok := EnvString("SHOP_API_VERSION"); ok {
		cfg.ShopAPIVersion = v
	}
	if v, ok := os.LookupEnv("HISTORY_DB"); ok {
		cfg.HistoryDB = strings.TrimSpace(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SCRAPER_PAGE_SIZE", &cfg.PageSize},
		{"SCRAPER_MAX_PAGES", &cfg.MaxPages},
		{"SCRAPER_MAX_RETRIES", &cfg.MaxRetries},
		{"SCRAPER_CHUNK_SIZE", &cfg.ChunkSize},
		{"SCRAPER_DEDUPE_MAX", &cfg.DedupeMaxSize},
		{"UPLOAD_BATCH_SIZE", &cfg.BatchSize},
	}
	for _, item := range ints {
		value, ok, err := EnvInt(item.key)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", item.key, err)
		}
		if ok {
			*item.dst = value
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SCRAPER_PAGE_DELAY", &cfg.PageDelay},
		{"SCRAPER_RETRY_BACKOFF", &cfg.RetryBackoff},
		{"SCRAPER_RETRY_BACKOFF_MAX", &cfg.RetryBackoffMax},
		{"SCRAPER_TIMEOUT", &cfg.Timeout},
		{"UPLOAD_BATCH_DELAY", &cfg.BatchDelay},
		{"UPLOAD_IMAGE_SETTLE", &cfg.ImageSettleDelay},
	}
	for _, item := range durations {
		value, ok, err := EnvDuration(item.key)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", item.key, err)
		}
		if ok {
			*item.dst = value
		}
	}

	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay cannot be negative")
	}
	if c.ImageSettleDelay < 0 {
		return fmt.Errorf("image settle delay cannot be negative")
	}
	if c.ExportBatchSize <= 0 {
		return fmt.Errorf("export batch size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.ShopAccessToken != "" && c.ShopDomain == "" {
		return fmt.Errorf("shop domain is required when an access token is set")
	}
	return nil
}

// AdminConfigured reports whether the destination shop credentials are set.
func (c *Config) AdminConfigured() bool {
	return c.ShopDomain != "" && c.ShopAccessToken != ""
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", false
	}
	return v, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// EnvDuration parses key as a Go duration; a bare integer is read as
// milliseconds.
func EnvDuration(key string) (time.Duration, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, true, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, err
	}
	return d, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, err
	}
	return b, true, nil
}
