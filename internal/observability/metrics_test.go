package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsCountersAndHandler(t *testing.T) {
	m := NewMetrics()
	m.IncFetch("main", "remote")
	m.IncFetch("main", "remote")
	m.IncDiagnostic("sales", "remote_not_found")
	m.ObserveReport("search", 20*time.Millisecond)
	m.IncHTTPRequest("/api/sales", http.StatusBadRequest)

	if got := m.FetchCount("main", "remote"); got != 2 {
		t.Fatalf("FetchCount = %v, want 2", got)
	}
	if got := m.DiagnosticCount("sales", "remote_not_found"); got != 1 {
		t.Fatalf("DiagnosticCount = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`posreports_fetch_total{sheet="main",source="remote"} 2`,
		`posreports_http_requests_total{route="/api/sales",status="4xx"} 1`,
		"posreports_report_duration_seconds_bucket",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.IncFetch("main", "cache")
	m.IncCacheHit("main")
	m.IncRefreshMessage("ok")
	if m.FetchCount("main", "cache") != 0 {
		t.Fatalf("nil metrics should report zero")
	}
}

func TestNewMetricsTwice(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.IncFetch("main", "cache")
	if b.FetchCount("main", "cache") != 0 {
		t.Fatalf("registries should be independent")
	}
}
