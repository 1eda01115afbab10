// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアとハンドラーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordAuthEvent(event, result string)
	RecordTaskOperation(operation, result string)
	RecordRateLimited(limitType string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
	taskOps      *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_auth_events_total",
			Help: "認証イベント（register, login, refresh, token）の結果別件数",
		}, []string{"event", "result"}),
		taskOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_task_operations_total",
			Help: "タスク操作の結果別件数",
		}, []string{"operation", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"limit_type"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authEvents,
		c.taskOps,
		c.rateLimited,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはURLではなくルートパターンを渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, result string) {
	c.authEvents.WithLabelValues(event, result).Inc()
}

// RecordTaskOperation はタスク操作を記録する。
func (c *Collector) RecordTaskOperation(operation, result string) {
	c.taskOps.WithLabelValues(operation, result).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクス無効時やテストで使用する。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordAuthEvent(string, string)                       {}
func (NopCollector) RecordTaskOperation(string, string)                   {}
func (NopCollector) RecordRateLimited(string)                             {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
