package uploader

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for upload runs.
type Metrics struct {
	ProductsTotal *prometheus.CounterVec
	StepFailures  *prometheus.CounterVec
	BatchesTotal  prometheus.Counter
	BatchDuration prometheus.Histogram
}

// NewMetrics registers upload collectors on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_upload_products_total",
			Help: "Products processed by upload runs, by outcome.",
		},
		[]string{"outcome"},
	)
	steps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_upload_step_failures_total",
			Help: "Best-effort upload steps that failed without failing the product.",
		},
		[]string{"step"},
	)
	batches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_upload_batches_total",
			Help: "Upload batches completed.",
		},
	)
	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_upload_batch_duration_seconds",
			Help:    "Wall time of one upload batch.",
			Buckets: prometheus.DefBuckets,
		},
	)

	if reg != nil {
		reg.MustRegister(products, steps, batches, batchDuration)
	}

	return &Metrics{
		ProductsTotal: products,
		StepFailures:  steps,
		BatchesTotal:  batches,
		BatchDuration: batchDuration,
	}
}

func (m *Metrics) incProduct(outcome string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incStepFailure(step string) {
	if m == nil {
		return
	}
	m.StepFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) observeBatch(seconds float64) {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.BatchDuration.Observe(seconds)
}
