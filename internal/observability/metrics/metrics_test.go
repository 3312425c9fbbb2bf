package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

func TestPipelineMetricsSharesHTTPRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	pipeline := NewPipelineMetrics("api", httpMetrics.Registry())

	pipeline.ObserveRun("Grants.gov", domain.RunStatusCompleted, 40, 5, 2, 12.5)
	pipeline.ObserveRun("Grants.gov", domain.RunStatusCompleted, 10, 1, 0, 3)
	pipeline.ObserveQualification("Grants.gov", "accepted")

	if got := testutil.ToFloat64(pipeline.itemsTotal.WithLabelValues("api", "Grants.gov", "found")); got != 50 {
		t.Fatalf("expected 50 found items, got %v", got)
	}
	if got := testutil.ToFloat64(pipeline.runsTotal.WithLabelValues("api", "Grants.gov", "completed")); got != 2 {
		t.Fatalf("expected 2 completed runs, got %v", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bdp_pipeline_qualifications_total") {
		t.Fatalf("expected pipeline metrics on shared handler")
	}
}

func TestMiddlewareNormalizesLeadPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/leads/17", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/leads/18", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/api/leads/{id}", "404")); got != 2 {
		t.Fatalf("expected 2 normalized requests, got %v", got)
	}
}

func TestObserveBreakerEncodesState(t *testing.T) {
	pipeline := NewPipelineMetrics("leadctl", nil)

	pipeline.ObserveBreaker("anthropic", "open")
	if got := testutil.ToFloat64(pipeline.breakerState.WithLabelValues("leadctl", "anthropic")); got != 2 {
		t.Fatalf("expected open=2, got %v", got)
	}
	pipeline.ObserveBreaker("anthropic", "closed")
	if got := testutil.ToFloat64(pipeline.breakerState.WithLabelValues("leadctl", "anthropic")); got != 0 {
		t.Fatalf("expected closed=0, got %v", got)
	}
}

func TestNormalizePathCollapsesUnknownRoutes(t *testing.T) {
	cases := map[string]string{
		"/api/leads":          "/api/leads",
		"/api/leads/42":       "/api/leads/{id}",
		"/api/scrape/history": "/api/scrape/history",
		"/wp-login.php":       "other",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandlerExposesRuntimeCollectors(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected go runtime metrics in output")
	}
}
