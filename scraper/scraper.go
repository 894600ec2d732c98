package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/storefront-sync/config"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const responseKey = "response"

// Scraper walks a storefront's public products.json feed page by page.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = 0
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// Each request carries its own colly.Context, so one shared callback
	// serves concurrent scrapes.
	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	})

	return &Scraper{
		cfg:       cfg,
		collector: collector,
		Metrics:   NewMetrics(),
	}, nil
}

// SetTransport replaces the HTTP transport used for page requests.
func (s *Scraper) SetTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Fetch retrieves every product of domain, page by page, reporting each
// page, retry wait, and warning through emit. Pagination ceilings and
// repeated pages end the run successfully with a warning.
func (s *Scraper) Fetch(ctx context.Context, domain string, emit models.Emitter) (*models.ScrapeResult, error) {
	if emit == nil {
		emit = func(models.ProgressEvent) {}
	}

	seen, err := lru.New[int64, struct{}](s.cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	result := &models.ScrapeResult{Domain: domain}
	warn := func(msg string) {
		slog.Warn("scrape warning", slog.String("domain", domain), slog.String("warning", msg))
		result.Warnings = append(result.Warnings, msg)
		emit(models.ProgressEvent{Type: models.EventWarning, Domain: domain, Message: msg})
	}

	for page := 1; ; page++ {
		emit(models.ProgressEvent{Type: models.EventFetching, Domain: domain, Page: page})

		products, err := s.fetchPage(ctx, domain, page, result, emit)
		if err != nil {
			if errors.Is(err, errPaginationCeiling) {
				warn(fmt.Sprintf("storefront refused page %d; stopping with %d products from %d pages", page, len(result.Products), result.Pages))
				break
			}
			s.Metrics.IncError(errorTypeLabel(err))
			return nil, err
		}
		if len(products) == 0 {
			break
		}
		result.Pages = page

		added := 0
		for _, p := range products {
			if p == nil {
				continue
			}
			if seen.Contains(p.ID) {
				result.Duplicates++
				continue
			}
			seen.Add(p.ID, struct{}{})
			p.URL = productURL(domain, p.Handle)
			result.Products = append(result.Products, p)
			added++
		}
		s.Metrics.AddPage(added)
		s.Metrics.AddDuplicates(len(products) - added)

		slog.Debug("page fetched",
			slog.String("domain", domain),
			slog.Int("page", page),
			slog.Int("page_products", len(products)),
			slog.Int("total", len(result.Products)),
		)
		emit(models.ProgressEvent{
			Type:      models.EventProgress,
			Domain:    domain,
			Page:      page,
			PageCount: len(products),
			Total:     len(result.Products),
		})

		if added == 0 {
			warn(fmt.Sprintf("page %d only repeated earlier products; stopping", page))
			break
		}
		if len(products) < s.cfg.PageSize {
			break
		}
		if page >= s.cfg.MaxPages {
			warn(fmt.Sprintf("pagination limit of %d pages reached; stopping with %d products", s.cfg.MaxPages, len(result.Products)))
			break
		}

		emit(models.ProgressEvent{
			Type:    models.EventWaiting,
			Domain:  domain,
			Page:    page + 1,
			DelayMs: s.cfg.PageDelay.Milliseconds(),
			Reason:  "page_delay",
		})
		if err := sleep(ctx, s.cfg.PageDelay); err != nil {
			s.Metrics.IncError(errorTypeLabel(err))
			return nil, err
		}
	}

	return result, nil
}

// fetchPage requests one page, retrying throttled and transport failures
// with exponential backoff.
func (s *Scraper) fetchPage(ctx context.Context, domain string, page int, result *models.ScrapeResult, emit models.Emitter) ([]*models.ScrapedProduct, error) {
	pageURL := s.pageURL(domain, page)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := s.get(pageURL)

		var (
			wait     time.Duration
			reason   string
			retryErr error
		)
		switch {
		case err != nil:
			classified := classifyError(err)
			if !retryable(classified) {
				return nil, classified
			}
			wait, reason, retryErr = s.backoff(attempt), "transport", classified
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrStoreNotFound{Domain: domain}
		case resp.StatusCode == http.StatusTooManyRequests:
			wait = retryAfter(resp.Headers)
			if wait <= 0 {
				wait = s.backoff(attempt)
			}
			reason, retryErr = "rate_limited", ErrRateLimited{Page: page, Attempts: attempt + 1}
		case resp.StatusCode == http.StatusBadRequest && page > 1:
			return nil, errPaginationCeiling
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, ErrHTTPStatus{Page: page, StatusCode: resp.StatusCode}
		default:
			return decodePage(resp.Body, page)
		}

		if attempt >= s.cfg.MaxRetries {
			return nil, retryErr
		}

		result.Retries++
		s.Metrics.IncRetries(reason)
		slog.Warn("retrying page",
			slog.String("domain", domain),
			slog.Int("page", page),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", s.cfg.MaxRetries),
			slog.String("reason", reason),
			slog.Duration("wait", wait),
			slog.Any("error", retryErr),
		)
		emit(models.ProgressEvent{
			Type:    models.EventWaiting,
			Domain:  domain,
			Page:    page,
			DelayMs: wait.Milliseconds(),
			Reason:  reason,
			Attempt: attempt + 1,
		})
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (s *Scraper) get(pageURL string) (*colly.Response, error) {
	cctx := colly.NewContext()
	hdr := http.Header{}
	hdr.Set("Accept", "application/json")

	start := time.Now()
	s.Metrics.IncRequest("started")
	if err := s.collector.Request(http.MethodGet, pageURL, nil, cctx, hdr); err != nil {
		s.Metrics.IncRequest("failed")
		return nil, err
	}
	s.Metrics.ObserveDuration(time.Since(start))

	resp, ok := cctx.GetAny(responseKey).(*colly.Response)
	if !ok || resp == nil {
		s.Metrics.IncRequest("failed")
		return nil, fmt.Errorf("no response captured for %s", pageURL)
	}
	s.Metrics.IncRequest("completed")
	return resp, nil
}

func (s *Scraper) pageURL(domain string, page int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(s.cfg.PageSize))
	q.Set("page", strconv.Itoa(page))
	u := url.URL{
		Scheme:   "https",
		Host:     domain,
		Path:     "/products.json",
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<attempt)
	if ceiling := s.cfg.RetryBackoffMax; ceiling > 0 && (delay > ceiling || delay <= 0) {
		delay = ceiling
	}
	return delay
}

func decodePage(body []byte, page int) ([]*models.ScrapedProduct, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrMalformedResponse{Page: page, Err: err}
	}
	raw, ok := envelope["products"]
	if !ok {
		return nil, ErrMalformedResponse{Page: page, Err: errors.New(`missing "products" key`)}
	}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, ErrMalformedResponse{Page: page, Err: errors.New(`"products" is not a list`)}
	}

	var products []*models.ScrapedProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, ErrMalformedResponse{Page: page, Err: err}
	}
	return products, nil
}

func productURL(domain, handle string) string {
	return "https://" + domain + "/products/" + handle
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h *http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrConnection{Err: err}
	}
	return err
}

func retryable(err error) bool {
	var timeout ErrTimeout
	var conn ErrConnection
	return errors.As(err, &timeout) || errors.As(err, &conn)
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
