package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/storefront-sync/history"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/parser"
	"github.com/aluiziolira/storefront-sync/scraper"
)

type scrapeRequest struct {
	Domain string `json:"domain"`
}

// decodeDomain reads and normalises the store domain, answering 400 itself
// when it is missing or malformed.
func decodeDomain(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req scrapeRequest
	if !decodeBody(w, r, &req) {
		return "", false
	}
	if strings.TrimSpace(req.Domain) == "" {
		writeFailure(w, http.StatusBadRequest, "domain is required")
		return "", false
	}
	domain := parser.NormalizeDomain(req.Domain)
	if !parser.ValidDomain(domain) {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid store domain: %q", req.Domain))
		return "", false
	}
	return domain, true
}

func (s *Server) handleScrapeStream(w http.ResponseWriter, r *http.Request) {
	domain, ok := decodeDomain(w, r)
	if !ok {
		return
	}
	stream, ok := openEventStream(w)
	if !ok {
		writeFailure(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	started := time.Now()
	result, err := s.scraper.Stream(r.Context(), domain, func(ev models.ProgressEvent) {
		stream.send(ev)
	})
	s.recordScrape(domain, started, result, err)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	domain, ok := decodeDomain(w, r)
	if !ok {
		return
	}

	started := time.Now()
	result, err := s.scraper.Fetch(r.Context(), domain, nil)
	s.recordScrape(domain, started, result, err)
	if err != nil {
		writeJSON(w, scrapeStatus(err), map[string]any{
			"success": false,
			"error":   err.Error(),
			"code":    scraper.ErrorCode(err),
		})
		return
	}

	products := result.Products
	if products == nil {
		products = []*models.ScrapedProduct{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"products":    products,
		"count":       len(products),
		"storeDomain": domain,
		"pages":       result.Pages,
		"warnings":    result.Warnings,
	})
}

func scrapeStatus(err error) int {
	switch scraper.ErrorCode(err) {
	case "store_not_found":
		return http.StatusNotFound
	case "rate_limited":
		return http.StatusTooManyRequests
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) recordScrape(domain string, started time.Time, result *models.ScrapeResult, err error) {
	if s.history == nil {
		return
	}
	ctx, cancel := detached()
	defer cancel()

	run := history.NewScrapeRun(domain, started, result, scraper.ErrorCode(err), err)
	if recErr := s.history.RecordScrape(ctx, run); recErr != nil {
		slog.Warn("record scrape run", slog.String("domain", domain), slog.Any("error", recErr))
	}
}
