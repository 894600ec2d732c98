package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/storefront-sync/admin"
	"github.com/aluiziolira/storefront-sync/config"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/parser"
	"github.com/aluiziolira/storefront-sync/pipeline"
	"github.com/aluiziolira/storefront-sync/scraper"
	"github.com/aluiziolira/storefront-sync/uploader"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}
	outputDefault := "data/products.jsonl"
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault, _ := config.EnvString("SCRAPER_METRICS_ADDR")

	domainFlag := flag.String("domain", "", "Storefront domain or URL to scrape (required)")
	maxPages := flag.Int("pages", cfg.MaxPages, "Maximum feed pages to fetch")
	delayMs := flag.Int("delay", int(cfg.PageDelay.Milliseconds()), "Delay between pages (milliseconds)")
	maxRetries := flag.Int("max-retries", cfg.MaxRetries, "Maximum retry attempts per page")
	workers := flag.Int("workers", 2, "Export pipeline workers")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "jsonl", "Output format: json, jsonl, csv, or a comma-separated list")
	upload := flag.Bool("upload", false, "Upload the scraped products to SHOP_DOMAIN after export")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose || cfg.LogLevel == "debug")
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	domain := parser.NormalizeDomain(*domainFlag)
	if !parser.ValidDomain(domain) {
		slog.Error("a valid -domain is required", slog.String("domain", *domainFlag))
		os.Exit(2)
	}

	cfg.MaxPages = *maxPages
	cfg.PageDelay = time.Duration(*delayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *upload && !cfg.AdminConfigured() {
		slog.Error("-upload needs SHOP_DOMAIN and SHOP_ACCESS_TOKEN")
		os.Exit(1)
	}

	formats, err := parseFormats(*outputFormat)
	if err != nil {
		slog.Error("invalid format", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping after the current request")
	}()

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    *metricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", *metricsAddr))
	}

	startTime := time.Now()
	result, err := s.Stream(ctx, domain, logEvent)
	if err != nil {
		slog.Error("scraping failed", slog.String("code", scraper.ErrorCode(err)), slog.Any("error", err))
		os.Exit(1)
	}

	writer, outputs, err := createWriter(formats, *outputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(*workers)
	if *verbose {
		p.StartMetricsReporting(10 * time.Second)
	}
	if err := p.Process(result.Products...); err != nil {
		slog.Error("queueing products", slog.Any("error", err))
	}
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		os.Exit(1)
	}

	var progress *models.UploadProgress
	if *upload {
		progress = uploadProducts(ctx, cfg, s, result.Products)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), outputs, p.GetMetrics(), progress)
}

func uploadProducts(ctx context.Context, cfg *config.Config, s *scraper.Scraper, products []*models.ScrapedProduct) *models.UploadProgress {
	client := admin.NewClient(cfg.ShopDomain, cfg.ShopAccessToken, cfg.ShopAPIVersion, &http.Client{Timeout: cfg.Timeout})
	metrics := uploader.NewMetrics(s.Metrics.Registry)

	opts := uploader.OptionsFromConfig(cfg)
	opts.OnProgress = func(p models.UploadProgress, last string) {
		slog.Info("upload progress",
			slog.Int("completed", p.Completed),
			slog.Int("failed", p.Failed),
			slog.Int("total", p.Total),
			slog.String("last", last),
		)
	}

	slog.Info("uploading products", slog.String("endpoint", client.Endpoint()), slog.Int("products", len(products)))
	progress, err := uploader.New(client, metrics).Upload(ctx, products, opts)
	if err != nil {
		slog.Error("upload failed", slog.Any("error", err))
		os.Exit(1)
	}
	return &progress
}

func logEvent(ev models.ProgressEvent) {
	switch ev.Type {
	case models.EventFetching:
		slog.Debug("fetching page", slog.Int("page", ev.Page))
	case models.EventProgress:
		slog.Info("page done", slog.Int("page", ev.Page), slog.Int("page_products", ev.PageCount), slog.Int("total", ev.Total))
	case models.EventWaiting:
		slog.Debug("waiting", slog.String("reason", ev.Reason), slog.Int64("delay_ms", ev.DelayMs))
	}
}

func parseFormats(value string) ([]string, error) {
	var formats []string
	for _, f := range strings.Split(strings.ToLower(value), ",") {
		f = strings.TrimSpace(f)
		switch f {
		case "":
			continue
		case pipeline.FormatJSON, pipeline.FormatJSONL, pipeline.FormatCSV:
			formats = append(formats, f)
		default:
			return nil, fmt.Errorf("unsupported format: %s", f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output format given")
	}
	return formats, nil
}

// createWriter opens one file for a single format, or one file per format
// next to each other when several are requested.
func createWriter(formats []string, filename string) (pipeline.OutputWriter, []string, error) {
	if len(formats) == 1 {
		w, err := pipeline.CreateFileWriter(formats[0], filename)
		return w, []string{filename}, err
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	outputs := make([]string, len(formats))
	for i, f := range formats {
		outputs[i] = base + "." + f
	}
	w, err := pipeline.NewMultiWriter(base, formats...)
	return w, outputs, err
}

func printSummary(result *models.ScrapeResult, duration time.Duration, outputs []string, metrics map[string]interface{}, progress *models.UploadProgress) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	exported := int64(0)
	if processed, ok := metrics["processed_products"].(int64); ok {
		exported = processed
	}
	fmt.Printf("  Store:         %s\n", result.Domain)
	fmt.Printf("  Products:      %d\n", len(result.Products))
	fmt.Printf("  Pages:         %d\n", result.Pages)
	fmt.Printf("  Retries:       %d\n", result.Retries)
	fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	fmt.Printf("  Exported:      %d\n", exported)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  Warning:       %s\n", w)
	}
	if progress != nil {
		fmt.Printf("  Uploaded:      %d/%d (%d failed)\n", progress.Completed, progress.Total, progress.Failed)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output files:  %s\n", strings.Join(outputs, ", "))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
