// Package history keeps a local ledger of scrape and upload runs.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/storefront-sync/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultListLimit = 20
	maxListLimit     = 200
)

// ScrapeRun is one completed or failed scrape.
type ScrapeRun struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Domain     string    `gorm:"index" json:"domain"`
	Status     string    `gorm:"index" json:"status"`
	Products   int       `json:"products"`
	Pages      int       `json:"pages"`
	Retries    int       `json:"retries"`
	Duplicates int       `json:"duplicates"`
	Warnings   []string  `gorm:"serializer:json;type:text" json:"warnings"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time `gorm:"index" json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

// UploadRun is one upload to the destination shop.
type UploadRun struct {
	ID         string                 `gorm:"primaryKey;size:36" json:"id"`
	Shop       string                 `gorm:"index" json:"shop"`
	Status     string                 `gorm:"index" json:"status"`
	Total      int                    `json:"total"`
	Completed  int                    `json:"completed"`
	Failed     int                    `json:"failed"`
	Failures   []models.UploadFailure `gorm:"serializer:json;type:text" json:"errors"`
	Error      string                 `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time              `gorm:"index" json:"startedAt"`
	DurationMs int64                  `json:"durationMs"`
}

// NewScrapeRun summarises a scrape that began at started.
func NewScrapeRun(domain string, started time.Time, result *models.ScrapeResult, code string, err error) *ScrapeRun {
	run := &ScrapeRun{
		Domain:     domain,
		Status:     StatusSuccess,
		Warnings:   []string{},
		StartedAt:  started.UTC(),
		DurationMs: time.Since(started).Milliseconds(),
	}
	if result != nil {
		run.Products = len(result.Products)
		run.Pages = result.Pages
		run.Retries = result.Retries
		run.Duplicates = result.Duplicates
		if result.Warnings != nil {
			run.Warnings = result.Warnings
		}
	}
	if err != nil {
		run.Status = StatusFailed
		run.ErrorCode = code
		run.Error = err.Error()
	}
	return run
}

// NewUploadRun summarises an upload that began at started.
func NewUploadRun(shop string, started time.Time, progress models.UploadProgress, err error) *UploadRun {
	run := &UploadRun{
		Shop:       shop,
		Status:     StatusSuccess,
		Total:      progress.Total,
		Completed:  progress.Completed,
		Failed:     progress.Failed,
		Failures:   progress.Errors,
		StartedAt:  started.UTC(),
		DurationMs: time.Since(started).Milliseconds(),
	}
	if run.Failures == nil {
		run.Failures = []models.UploadFailure{}
	}
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	return run
}

// Store persists runs in a SQLite file.
type Store struct {
	db   *gorm.DB
	Path string
}

// Open opens (creating if needed) the ledger at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := gdb.AutoMigrate(&ScrapeRun{}, &UploadRun{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: gdb, Path: path}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordScrape stores run, assigning an id when it has none.
func (s *Store) RecordScrape(ctx context.Context, run *ScrapeRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record scrape run: %w", err)
	}
	return nil
}

// RecordUpload stores run, assigning an id when it has none.
func (s *Store) RecordUpload(ctx context.Context, run *UploadRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record upload run: %w", err)
	}
	return nil
}

// ListScrapes returns the newest scrape runs first.
func (s *Store) ListScrapes(ctx context.Context, limit int) ([]ScrapeRun, error) {
	runs := []ScrapeRun{}
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(clampLimit(limit)).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list scrape runs: %w", err)
	}
	return runs, nil
}

// ListUploads returns the newest upload runs first.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]UploadRun, error) {
	runs := []UploadRun{}
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(clampLimit(limit)).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list upload runs: %w", err)
	}
	return runs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
