package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// requestInfoContextKey はログ用のリクエスト情報を格納するキー。
var requestInfoContextKey = contextKey("request_info")

// requestInfo は内側のミドルウェアが確定した値をロギングミドルウェアへ渡す。
// 認証は内側で行われるため、外側のロギングからはコンテキストの差し替えが見えない。
type requestInfo struct {
	userID string
}

// setRequestUserID はロギング対象のユーザーIDを記録する。
// ロギングミドルウェアを通っていない場合は何もしない。
func setRequestUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、user_id（認証済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), requestInfoContextKey, info)

			next.ServeHTTP(rec, r.WithContext(ctx))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				args = append(args, slog.String("request_id", reqID))
			}
			if info.userID != "" {
				args = append(args, slog.String("user_id", info.userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
