package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(cfg, metrics.NopCollector{})
	t.Cleanup(rl.Stop)
	return rl
}

func requestAsUser(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- GeneralMiddleware（ユーザー単位）のテスト ---

func TestGeneralMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 2, GeneralBurst: 5, AuthRate: 1, AuthBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAsUser("user-1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestGeneralMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.5, GeneralBurst: 2, AuthRate: 1, AuthBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAsUser("user-rl"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAsUser("user-rl"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter != 2 {
		t.Errorf("Retry-After = %q, want %q", w.Header().Get("Retry-After"), "2")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeRateLimitExceeded {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimitExceeded)
	}
}

func TestGeneralMiddleware_UsersAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 1, AuthRate: 1, AuthBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestAsUser("user-a"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAsUser("user-b"))
	if w.Code != http.StatusOK {
		t.Errorf("user-b status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

func TestGeneralMiddleware_RequiresUserID(t *testing.T) {
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig())
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- AuthMiddleware（IP単位）のテスト ---

func TestAuthMiddleware_LimitsByClientIP(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, AuthRate: 0.1, AuthBurst: 2, CleanupInterval: time.Minute}, collector)
	defer rl.Stop()
	handler := rl.AuthMiddleware()(okHandler())

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// 同一IPはポートが異なっても同じキー
	if got := send("192.0.2.1:1000"); got != http.StatusOK {
		t.Fatalf("1st status = %d, want 200", got)
	}
	if got := send("192.0.2.1:2000"); got != http.StatusOK {
		t.Fatalf("2nd status = %d, want 200", got)
	}
	if got := send("192.0.2.1:3000"); got != http.StatusTooManyRequests {
		t.Errorf("3rd status = %d, want 429", got)
	}
	if got := send("198.51.100.7:1000"); got != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", got)
	}

	if got := rl.AuthLimiterCount(); got != 2 {
		t.Errorf("AuthLimiterCount = %d, want 2", got)
	}
	if got := rateLimitedCount(t, reg, "auth"); got != 1 {
		t.Errorf("rate_limited_total{auth} = %v, want 1", got)
	}
}

// rateLimitedCount はtaskman_rate_limited_totalの指定ラベルの値を返す。
func rateLimitedCount(t *testing.T, reg *prometheus.Registry, limitType string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "taskman_rate_limited_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "limit_type" && lp.GetValue() == limitType {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, AuthRate: 1, AuthBurst: 1, CleanupInterval: time.Minute})

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAsUser("idle"))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}

	rl.cleanup(time.Now().Add(time.Minute))
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("entry evicted too early")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount = %d after cleanup, want 0", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig(), metrics.NopCollector{})
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d, want 2/120", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want 10", cfg.AuthBurst)
	}
}
