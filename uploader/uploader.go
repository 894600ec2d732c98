package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/storefront-sync/config"
	"github.com/aluiziolira/storefront-sync/convert"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/parser"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
	DefaultSettle     = 500 * time.Millisecond
)

// Catalog is the subset of the destination Admin API an upload needs.
type Catalog interface {
	CreateProduct(ctx context.Context, input models.ProductInput) (string, error)
	DefaultVariant(ctx context.Context, productID string) (models.VariantRef, error)
	UpdateVariantPrice(ctx context.Context, productID, variantID string, v models.VariantInput) error
	CreateVariant(ctx context.Context, productID string, v models.VariantInput) (models.VariantRef, error)
	SetInventorySKU(ctx context.Context, inventoryItemID, sku string) error
	CreateMedia(ctx context.Context, productID string, media []models.MediaInput) error
	DeleteProduct(ctx context.Context, id string) error
}

// ProgressFunc receives a snapshot after every batch together with the
// title of the last product in that batch.
type ProgressFunc func(progress models.UploadProgress, lastTitle string)

// Options tunes one upload run.
type Options struct {
	BatchSize           int
	DelayBetweenBatches time.Duration
	ImageSettleDelay    time.Duration
	OnProgress          ProgressFunc
}

// OptionsFromConfig returns the configured upload defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:           cfg.BatchSize,
		DelayBetweenBatches: cfg.BatchDelay,
		ImageSettleDelay:    cfg.ImageSettleDelay,
	}
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.DelayBetweenBatches < 0 {
		o.DelayBetweenBatches = 0
	}
	if o.ImageSettleDelay < 0 {
		o.ImageSettleDelay = 0
	}
	return o
}

// ValidationError rejects a run before any product is created.
type ValidationError struct {
	Result parser.ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("upload validation failed: %s", strings.Join(e.Result.Messages(), "; "))
}

// Uploader re-creates scraped products in the destination catalog.
type Uploader struct {
	catalog Catalog
	metrics *Metrics
}

// New builds an uploader. metrics may be nil.
func New(catalog Catalog, metrics *Metrics) *Uploader {
	return &Uploader{catalog: catalog, metrics: metrics}
}

type itemResult struct {
	title string
	err   error
}

// Upload creates every product in batches of opts.BatchSize. Items within a
// batch run concurrently and fail independently; only the creation call
// decides whether a product counts as completed or failed. The returned
// progress is valid even when err is non-nil.
func (u *Uploader) Upload(ctx context.Context, products []*models.ScrapedProduct, opts Options) (models.UploadProgress, error) {
	opts = opts.normalized()

	if res := parser.ValidateUpload(products); !res.IsValid() {
		return models.UploadProgress{Errors: []models.UploadFailure{}}, &ValidationError{Result: res}
	}

	progress := models.UploadProgress{
		Total:  len(products),
		Errors: []models.UploadFailure{},
	}
	batches := (len(products) + opts.BatchSize - 1) / opts.BatchSize
	slog.Info("upload started",
		slog.Int("products", len(products)),
		slog.Int("batch_size", opts.BatchSize),
		slog.Int("batches", batches),
	)

	for start, batch := 0, 1; start < len(products); start, batch = start+opts.BatchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return progress, err
		}

		end := start + opts.BatchSize
		if end > len(products) {
			end = len(products)
		}

		began := time.Now()
		results := u.runBatch(ctx, products[start:end], opts)
		u.metrics.observeBatch(time.Since(began).Seconds())

		for _, r := range results {
			if r.err != nil {
				progress.Failed++
				progress.Errors = append(progress.Errors, models.UploadFailure{ProductTitle: r.title, Error: r.err.Error()})
				u.metrics.incProduct("failed")
				continue
			}
			progress.Completed++
			u.metrics.incProduct("completed")
		}
		last := results[len(results)-1].title
		progress.CurrentItem = last

		slog.Info("upload batch finished",
			slog.Int("batch", batch),
			slog.Int("batches", batches),
			slog.Int("completed", progress.Completed),
			slog.Int("failed", progress.Failed),
		)
		if opts.OnProgress != nil {
			opts.OnProgress(progress.Snapshot(), last)
		}

		if end < len(products) {
			if err := sleep(ctx, opts.DelayBetweenBatches); err != nil {
				return progress, err
			}
		}
	}

	slog.Info("upload finished",
		slog.Int("total", progress.Total),
		slog.Int("completed", progress.Completed),
		slog.Int("failed", progress.Failed),
	)
	return progress, nil
}

func (u *Uploader) runBatch(ctx context.Context, batch []*models.ScrapedProduct, opts Options) []itemResult {
	results := make([]itemResult, len(batch))
	var wg sync.WaitGroup
	for i, p := range batch {
		wg.Add(1)
		go func(i int, p *models.ScrapedProduct) {
			defer wg.Done()
			results[i] = itemResult{title: p.Title, err: u.uploadOne(ctx, p, opts)}
		}(i, p)
	}
	wg.Wait()
	return results
}

func (u *Uploader) uploadOne(ctx context.Context, p *models.ScrapedProduct, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic uploading %q: %v", p.Title, r)
		}
	}()

	input := convert.ToProductInput(p)
	productID, err := u.catalog.CreateProduct(ctx, input)
	if err != nil {
		slog.Warn("product create failed", slog.String("title", p.Title), slog.Any("error", err))
		return err
	}

	if len(input.Variants) > 0 {
		u.applyVariants(ctx, productID, p.Title, input.Variants)
	}

	if len(input.Images) > 0 {
		if err := sleep(ctx, opts.ImageSettleDelay); err != nil {
			return nil
		}
		if err := u.catalog.CreateMedia(ctx, productID, input.Images); err != nil {
			u.metrics.incStepFailure("media")
			slog.Warn("attaching images failed",
				slog.String("title", p.Title),
				slog.String("product_id", productID),
				slog.Int("images", len(input.Images)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// applyVariants prices the auto-created default variant from the first
// source variant and creates the rest. Every step is best-effort.
func (u *Uploader) applyVariants(ctx context.Context, productID, title string, variants []models.VariantInput) {
	ref, err := u.catalog.DefaultVariant(ctx, productID)
	if err != nil {
		u.metrics.incStepFailure("default_variant")
		slog.Warn("default variant lookup failed", slog.String("title", title), slog.Any("error", err))
	} else {
		if err := u.catalog.UpdateVariantPrice(ctx, productID, ref.ID, variants[0]); err != nil {
			u.metrics.incStepFailure("variant_price")
			slog.Warn("default variant update failed", slog.String("title", title), slog.Any("error", err))
		}
		u.attachSKU(ctx, title, ref, variants[0].SKU)
	}

	for i, v := range variants[1:] {
		ref, err := u.catalog.CreateVariant(ctx, productID, v)
		if err != nil {
			u.metrics.incStepFailure("variant_create")
			slog.Warn("variant create failed",
				slog.String("title", title),
				slog.Int("variant", i+2),
				slog.Any("error", err),
			)
			continue
		}
		u.attachSKU(ctx, title, ref, v.SKU)
	}
}

func (u *Uploader) attachSKU(ctx context.Context, title string, ref models.VariantRef, sku string) {
	if sku == "" || ref.InventoryItemID == "" {
		return
	}
	if err := u.catalog.SetInventorySKU(ctx, ref.InventoryItemID, sku); err != nil {
		u.metrics.incStepFailure("sku")
		slog.Warn("sku update failed",
			slog.String("title", title),
			slog.String("sku", sku),
			slog.Any("error", err),
		)
	}
}

// Delete removes products one by one and reports per-id failures.
func (u *Uploader) Delete(ctx context.Context, ids []string) (models.DeleteResult, error) {
	result := models.DeleteResult{Errors: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := u.catalog.DeleteProduct(ctx, id); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			slog.Warn("product delete failed", slog.String("id", id), slog.Any("error", err))
			continue
		}
		result.Successful++
	}
	slog.Info("delete finished", slog.Int("successful", result.Successful), slog.Int("failed", result.Failed))
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
