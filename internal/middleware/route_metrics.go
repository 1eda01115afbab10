package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/taskman/internal/metrics"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのラベル。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はHTTPリクエストの件数と処理時間を記録するミドルウェアを返す。
// ラベルにはURLではなくchiのルートパターン（/tasks/{id} など）を使用する。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			collector.RecordHTTPRequest(r.Method, routePattern(r), rec.statusCode, time.Since(start))
		})
	}
}

// routePattern はルーティング後のリクエストからルートパターンを返す。
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
