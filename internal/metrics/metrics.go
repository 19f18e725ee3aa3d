package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider call outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCacheHit = "cache_hit"
	OutcomeFallback = "fallback"
	OutcomeDisabled = "disabled"
)

// Recorder holds the service's Prometheus collectors. A nil Recorder
// records nothing.
type Recorder struct {
	analyses        *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	lookupRecords   *prometheus.GaugeVec
	auditWrites     *prometheus.CounterVec
	alertsSent      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pricing",
				Name:      "analyses_total",
				Help:      "Completed pricing analyses by final rating and load type",
			},
			[]string{"rating", "load_type"},
		),
		analysisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pricing",
				Name:      "analysis_duration_seconds",
				Help:      "End-to-end duration of a pricing analysis",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
			},
			[]string{"load_type"},
		),
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pricing",
				Name:      "provider_calls_total",
				Help:      "External provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pricing",
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of external provider calls including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		lookupRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "pricing",
				Name:      "lookup_records",
				Help:      "Records in the active historical lookup table",
			},
			[]string{"source"},
		),
		auditWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pricing",
				Name:      "audit_writes_total",
				Help:      "Audit sink writes by outcome",
			},
			[]string{"sink", "outcome"},
		),
		alertsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pricing",
				Name:      "alerts_total",
				Help:      "Review alerts by outcome",
			},
			[]string{"outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route", "method", "class"},
		),
	}
}

// RecordAnalysis counts a finished analysis and its duration.
func (r *Recorder) RecordAnalysis(rating, loadType string, seconds float64) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(rating, loadType).Inc()
	r.analysisLatency.WithLabelValues(loadType).Observe(seconds)
}

// RecordProviderCall counts one provider call.
func (r *Recorder) RecordProviderCall(provider, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeError || outcome == OutcomeFallback {
		r.providerLatency.WithLabelValues(provider).Observe(seconds)
	}
}

// SetLookupRecords publishes the size of the active lookup table.
func (r *Recorder) SetLookupRecords(source string, n int) {
	if r == nil {
		return
	}
	r.lookupRecords.Reset()
	r.lookupRecords.WithLabelValues(source).Set(float64(n))
}

// RecordAuditWrite counts one audit sink write.
func (r *Recorder) RecordAuditWrite(sink string, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.auditWrites.WithLabelValues(sink, outcome).Inc()
}

// RecordAlert counts a review alert: sent, duplicate or error.
func (r *Recorder) RecordAlert(outcome string) {
	if r == nil {
		return
	}
	r.alertsSent.WithLabelValues(outcome).Inc()
}

// RecordHTTP counts one served request. route should be the route template
// to keep label cardinality low.
func (r *Recorder) RecordHTTP(route, method string, status int, seconds float64) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(route, method, StatusClass(status)).Observe(seconds)
}

// StatusClass buckets an HTTP status into 1xx..5xx.
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
