package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the permit wizard. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Verification outcomes by kind and outcome
	VerificationOutcome *prometheus.CounterVec

	// Verification requests that actually reached the remote endpoint
	VerificationCalls *prometheus.CounterVec

	VerificationLatency *prometheus.HistogramVec

	// Document extraction outcomes by document kind and result: valid, invalid, error
	ExtractionOutcome *prometheus.CounterVec

	ExtractionLatency prometheus.Histogram

	// Submission attempts by form type and final state
	SubmissionOutcome *prometheus.CounterVec

	ActiveSessions prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New registers the wizard metrics with reg. Passing prometheus.DefaultRegisterer exposes them
// on the default /metrics handler; tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VerificationOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permitflow_verification_outcomes_total",
			Help: "ID verification outcomes by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "verified", "cached", "not_found", "wrong_status", "error", "empty"

		VerificationCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permitflow_verification_requests_total",
			Help: "HTTP requests issued to verification endpoints",
		}, []string{"kind"}),

		VerificationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permitflow_verification_duration_seconds",
			Help:    "Duration of verification endpoint calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),

		ExtractionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permitflow_extraction_outcomes_total",
			Help: "Document text extraction outcomes by document kind and result",
		}, []string{"document_kind", "result"}),

		ExtractionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "permitflow_extraction_duration_seconds",
			Help:    "Duration of document text extraction including rasterization",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		SubmissionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permitflow_submission_outcomes_total",
			Help: "Submission attempts by form type and final state",
		}, []string{"form", "state"}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "permitflow_active_sessions",
			Help: "Wizard sessions currently held in memory",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permitflow_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permitflow_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// IncVerification records a verification outcome.
func (m *Metrics) IncVerification(kind, outcome string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveVerificationCall records one remote verification request and its duration.
func (m *Metrics) ObserveVerificationCall(kind string, d time.Duration) {
	if m != nil {
		m.VerificationCalls.WithLabelValues(kind).Inc()
		m.VerificationLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncExtraction records an extraction outcome.
func (m *Metrics) IncExtraction(documentKind, result string) {
	if m != nil {
		m.ExtractionOutcome.WithLabelValues(documentKind, result).Inc()
	}
}

// ObserveExtractionLatency records the duration of one extraction.
func (m *Metrics) ObserveExtractionLatency(d time.Duration) {
	if m != nil {
		m.ExtractionLatency.Observe(d.Seconds())
	}
}

// IncSubmission records the final state of a submission attempt.
func (m *Metrics) IncSubmission(form, state string) {
	if m != nil {
		m.SubmissionOutcome.WithLabelValues(form, state).Inc()
	}
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, status).Inc()
		m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
