package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider", "operation"},
	)

	AskOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_outcomes_total",
			Help: "Ask requests by outcome",
		},
		[]string{"outcome"},
	)
	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the sliding window limiter",
		},
	)
	RateLimitTrackedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_tracked_clients",
			Help: "Clients currently held in the in-memory rate table",
		},
	)
	PromptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prompt_tokens",
			Help:    "Estimated tokens per composed prompt",
			Buckets: []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_calls_total",
			Help: "Outbound dependency calls by result",
		},
		[]string{"dependency", "operation", "result"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Outbound dependency call duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"dependency", "operation"},
	)
	UpstreamTimeoutSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_timeout_seconds",
			Help: "Current adaptive deadline per dependency",
		},
		[]string{"dependency"},
	)
	InteractionRecordFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_record_failures_total",
			Help: "Interaction records that could not be written, by sink",
		},
		[]string{"sink"},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(AskOutcomesTotal)
		prometheus.MustRegister(RateLimitRejectionsTotal)
		prometheus.MustRegister(RateLimitTrackedClients)
		prometheus.MustRegister(PromptTokens)
		prometheus.MustRegister(UpstreamCallsTotal)
		prometheus.MustRegister(UpstreamCallDuration)
		prometheus.MustRegister(UpstreamTimeoutSeconds)
		prometheus.MustRegister(InteractionRecordFailuresTotal)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// unmatched paths share one label to keep cardinality bounded
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveOutcome counts one finished ask request.
func ObserveOutcome(outcome string) {
	AskOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RejectRateLimited counts one limiter rejection.
func RejectRateLimited() {
	RateLimitRejectionsTotal.Inc()
}

// SetTrackedClients publishes the size of the in-memory rate table.
func SetTrackedClients(n int) {
	RateLimitTrackedClients.Set(float64(n))
}

// ObservePromptTokens records the estimated size of a composed prompt.
func ObservePromptTokens(n int) {
	if n > 0 {
		PromptTokens.Observe(float64(n))
	}
}

// RecordFailure counts an interaction record that a sink dropped.
func RecordFailure(sink string) {
	InteractionRecordFailuresTotal.WithLabelValues(sink).Inc()
}

// ObserveUpstreamCall records one outbound call and the deadline that the
// next call to the same dependency will get.
func ObserveUpstreamCall(dependency, operation, result string, took, nextTimeout time.Duration) {
	UpstreamCallsTotal.WithLabelValues(dependency, operation, result).Inc()
	UpstreamCallDuration.WithLabelValues(dependency, operation).Observe(took.Seconds())
	UpstreamTimeoutSeconds.WithLabelValues(dependency).Set(nextTimeout.Seconds())
}
