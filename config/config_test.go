package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "negative retries",
			mutate: func(cfg *Config) {
				cfg.MaxRetries = -1
			},
			wantErr: "max retries",
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "zero batch size",
			mutate: func(cfg *Config) {
				cfg.BatchSize = 0
			},
			wantErr: "batch size",
		},
		{
			name: "token without shop",
			mutate: func(cfg *Config) {
				cfg.ShopAccessToken = "shpat_x"
			},
			wantErr: "shop domain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.AdminConfigured() {
		t.Fatalf("default config should not have admin credentials")
	}
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	t.Setenv("SHOP_DOMAIN", "dest.myshopify.com")
	t.Setenv("SHOP_ACCESS_TOKEN", "shpat_test")
	t.Setenv("SCRAPER_MAX_PAGES", "7")
	t.Setenv("SCRAPER_PAGE_DELAY", "250")
	t.Setenv("UPLOAD_BATCH_DELAY", "2s")
	t.Setenv("HISTORY_DB", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPages != 7 {
		t.Fatalf("max pages = %d, want 7", cfg.MaxPages)
	}
	if cfg.PageDelay != 250*time.Millisecond {
		t.Fatalf("page delay = %v, want 250ms", cfg.PageDelay)
	}
	if cfg.BatchDelay != 2*time.Second {
		t.Fatalf("batch delay = %v, want 2s", cfg.BatchDelay)
	}
	if cfg.HistoryDB != "" {
		t.Fatalf("history db = %q, want disabled", cfg.HistoryDB)
	}
	if !cfg.AdminConfigured() {
		t.Fatalf("expected admin to be configured")
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("SCRAPER_MAX_PAGES", "many")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SCRAPER_MAX_PAGES") {
		t.Fatalf("expected SCRAPER_MAX_PAGES error, got %v", err)
	}
}
