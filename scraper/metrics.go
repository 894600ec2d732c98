package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	PagesTotal        prometheus.Counter
	ProductsTotal     prometheus.Counter
	RetriesTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	DuplicateProducts prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_scraper_requests_total",
			Help: "Total page requests issued against storefront feeds.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_scraper_request_duration_seconds",
			Help:    "Latency of storefront page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_scraper_pages_total",
			Help: "Total feed pages fetched successfully.",
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_scraper_products_total",
			Help: "Total products collected from storefront feeds.",
		},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_scraper_retries_total",
			Help: "Total page retries by reason.",
		},
		[]string{"reason"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_scraper_errors_total",
			Help: "Total scrape failures by type.",
		},
		[]string{"error_type"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_scraper_duplicate_products_total",
			Help: "Products dropped because their id was already seen in the run.",
		},
	)

	registry.MustRegister(requests, requestDuration, pages, products, retries, errorsTotal, duplicates)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		PagesTotal:        pages,
		ProductsTotal:     products,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		DuplicateProducts: duplicates,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddPage records one successfully fetched page and its new products.
func (m *Metrics) AddPage(products int) {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
	m.ProductsTotal.Add(float64(products))
}

// AddDuplicates counts products dropped as repeats.
func (m *Metrics) AddDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicateProducts.Add(float64(n))
}

// IncRetries increments the retries counter for a reason label.
func (m *Metrics) IncRetries(reason string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(reason).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
