package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// findMetric は名前とラベルが一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録を検出することを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordHTTPRequest_CountsByRouteAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("DELETE", "/tasks/{id}", 404, 10*time.Millisecond)
	c.RecordHTTPRequest("DELETE", "/tasks/{id}", 404, 20*time.Millisecond)
	c.RecordHTTPRequest("GET", "/tasks", 200, 5*time.Millisecond)

	m := findMetric(t, reg, "taskman_http_requests_total", map[string]string{
		"method": "DELETE", "route": "/tasks/{id}", "status_code": "404",
	})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}

	h := findMetric(t, reg, "taskman_http_request_duration_seconds", map[string]string{
		"method": "DELETE", "route": "/tasks/{id}",
	})
	if got := h.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("duration sample count = %d, want 2", got)
	}
}

func TestRecordAuthEvent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("login", "failure")
	c.RecordAuthEvent("login", "failure")
	c.RecordAuthEvent("login", "success")

	m := findMetric(t, reg, "taskman_auth_events_total", map[string]string{"event": "login", "result": "failure"})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("auth_events_total{login,failure} = %v, want 2", got)
	}
}

func TestRecordTaskOperation_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTaskOperation("delete", "not_found")

	m := findMetric(t, reg, "taskman_task_operations_total", map[string]string{"operation": "delete", "result": "not_found"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("task_operations_total = %v, want 1", got)
	}
}

func TestRecordRateLimited_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimited("auth")

	m := findMetric(t, reg, "taskman_rate_limited_total", map[string]string{"limit_type": "auth"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("rate_limited_total = %v, want 1", got)
	}
}

// TestHandler_ServesMetrics はHandlerがPrometheusテキスト形式でメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTaskOperation("create", "success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "taskman_task_operations_total") {
		t.Errorf("response body does not contain taskman_task_operations_total:\n%s", body)
	}
}
