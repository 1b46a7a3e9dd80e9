package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddleware_RoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Post("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/", http.MethodPost, http.StatusText(http.StatusTeapot)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/", http.MethodPost, http.StatusText(http.StatusTeapot)))
	assert.Equal(t, before+1, after)
}

func TestHTTPMetricsMiddleware_Unmatched(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", http.MethodGet, "OK"))
	mw := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", http.MethodGet, "OK")))
}

func TestDomainMetricHelpers(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(AskOutcomesTotal.WithLabelValues("answered"))
	ObserveOutcome("answered")
	assert.Equal(t, before+1, testutil.ToFloat64(AskOutcomesTotal.WithLabelValues("answered")))

	rl := testutil.ToFloat64(RateLimitRejectionsTotal)
	RejectRateLimited()
	assert.Equal(t, rl+1, testutil.ToFloat64(RateLimitRejectionsTotal))

	SetTrackedClients(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(RateLimitTrackedClients))

	rf := testutil.ToFloat64(InteractionRecordFailuresTotal.WithLabelValues("postgres"))
	RecordFailure("postgres")
	assert.Equal(t, rf+1, testutil.ToFloat64(InteractionRecordFailuresTotal.WithLabelValues("postgres")))

	ObservePromptTokens(0)
	ObservePromptTokens(900)
}
