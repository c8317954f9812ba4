// Package metrics exposes Prometheus instrumentation for proof verification.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeNeedsReview = "needs_review"
	OutcomeBlocked     = "blocked"
	OutcomeOCRFailure  = "ocr_failure"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	reviews     *prometheus.CounterVec
	ocrDuration prometheus.Histogram
	categories  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payverify",
			Name:      "submissions_total",
			Help:      "Payment proof submissions by outcome.",
		}, []string{"outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payverify",
			Name:      "reviews_total",
			Help:      "Manual reviews by resulting status.",
		}, []string{"status"}),
		ocrDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "payverify",
			Name:      "ocr_duration_seconds",
			Help:      "Time spent recognizing a screenshot.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		}),
		categories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payverify",
			Name:      "verification_category_total",
			Help:      "Verification verdicts by failure category.",
		}, []string{"category"}),
		gatherer: reg,
	}
	reg.MustRegister(m.submissions, m.reviews, m.ocrDuration, m.categories,
		prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Review(status string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(status).Inc()
}

func (m *Metrics) OCR(d time.Duration) {
	if m == nil {
		return
	}
	m.ocrDuration.Observe(d.Seconds())
}

func (m *Metrics) Category(c string) {
	if m == nil {
		return
	}
	m.categories.WithLabelValues(c).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
