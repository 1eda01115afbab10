package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はヘルスチェック時のストア疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はストアの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。checkerがnilの場合は常にokを返す。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health はストアに到達できれば200、できなければ503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.checker.PingContext(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
