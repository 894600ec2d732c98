package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/storefront-sync/models"
)

// Stream runs a complete scrape and reports it through emit. A successful
// run ends with complete, the products in chunks of ChunkSize, and done; a
// failed run ends with exactly one error event and no done.
func (s *Scraper) Stream(ctx context.Context, domain string, emit models.Emitter) (result *models.ScrapeResult, err error) {
	if emit == nil {
		emit = func(models.ProgressEvent) {}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape panicked", slog.String("domain", domain), slog.Any("panic", r))
			result = nil
			err = fmt.Errorf("scrape panicked: %v", r)
			emit(models.ProgressEvent{Type: models.EventError, Domain: domain, Message: err.Error(), Code: "internal"})
		}
	}()

	slog.Info("scrape started", slog.String("domain", domain))
	emit(models.ProgressEvent{
		Type:    models.EventStart,
		Domain:  domain,
		Message: fmt.Sprintf("Fetching products from %s", domain),
	})

	result, err = s.Fetch(ctx, domain, emit)
	if err != nil {
		slog.Error("scrape failed", slog.String("domain", domain), slog.Any("error", err))
		emit(models.ProgressEvent{
			Type:    models.EventError,
			Domain:  domain,
			Message: err.Error(),
			Code:    errorTypeLabel(err),
		})
		return nil, err
	}

	total := len(result.Products)
	emit(models.ProgressEvent{
		Type:   models.EventComplete,
		Domain: domain,
		Total:  total,
		Pages:  result.Pages,
	})

	size := s.cfg.ChunkSize
	chunks := (total + size - 1) / size
	for i, chunk := 0, 1; i < total; i, chunk = i+size, chunk+1 {
		end := i + size
		if end > total {
			end = total
		}
		emit(models.ProgressEvent{
			Type:     models.EventProducts,
			Domain:   domain,
			Products: result.Products[i:end],
			Chunk:    chunk,
			Chunks:   chunks,
			Total:    total,
		})
	}

	slog.Info("scrape finished",
		slog.String("domain", domain),
		slog.Int("products", total),
		slog.Int("pages", result.Pages),
		slog.Int("retries", result.Retries),
		slog.Int("warnings", len(result.Warnings)),
	)
	emit(models.ProgressEvent{
		Type:   models.EventDone,
		Domain: domain,
		Total:  total,
		Pages:  result.Pages,
	})
	return result, nil
}
