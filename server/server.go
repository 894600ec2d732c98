// Package server exposes scraping, uploading, and export over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aluiziolira/storefront-sync/config"
	"github.com/aluiziolira/storefront-sync/history"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/scraper"
	"github.com/aluiziolira/storefront-sync/uploader"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 20

// Catalog is the destination shop as the HTTP API uses it.
type Catalog interface {
	uploader.Catalog
	ListProducts(ctx context.Context, first int, after, query string) (*models.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*models.AdminProduct, error)
}

// Server wires the scraper, uploader, and run ledger behind a chi router.
type Server struct {
	cfg      *config.Config
	scraper  *scraper.Scraper
	catalog  Catalog
	uploader *uploader.Uploader
	history  *history.Store
	registry *prometheus.Registry
	router   *chi.Mux
}

// New builds the HTTP API. catalog and store may be nil; the endpoints that
// need them then answer 503.
func New(cfg *config.Config, s *scraper.Scraper, catalog Catalog, store *history.Store) *Server {
	registry := s.Metrics.Registry
	srv := &Server{
		cfg:      cfg,
		scraper:  s,
		catalog:  catalog,
		history:  store,
		registry: registry,
	}
	if catalog != nil {
		srv.uploader = uploader.New(catalog, uploader.NewMetrics(registry))
	}
	srv.router = srv.routes()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"adminConfigured": s.catalog != nil,
			"historyEnabled":  s.history != nil,
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", s.handleScrape)
		r.Post("/scrape/stream", s.handleScrapeStream)
		r.Post("/export", s.handleExport)

		r.Group(func(r chi.Router) {
			r.Use(s.requireCatalog)
			r.Post("/upload-scraped", s.handleUpload)
			r.Post("/upload-scraped/stream", s.handleUploadStream)
			r.Post("/products/delete", s.handleDelete)
			r.Get("/products", s.handleListProducts)
			r.Get("/products/{id}", s.handleGetProduct)
		})

		r.Route("/history", func(r chi.Router) {
			r.Use(s.requireHistory)
			r.Get("/scrapes", s.handleScrapeHistory)
			r.Get("/uploads", s.handleUploadHistory)
		})
	})
	return r
}

func (s *Server) requireCatalog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.catalog == nil {
			writeFailure(w, http.StatusServiceUnavailable, "destination shop is not configured (set SHOP_DOMAIN and SHOP_ACCESS_TOKEN)")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireHistory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			writeFailure(w, http.StatusServiceUnavailable, "run history is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", slog.Any("error", err))
	}
}

func writeFailure(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// detached returns a short context for bookkeeping that must outlive a
// cancelled request.
func detached() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
