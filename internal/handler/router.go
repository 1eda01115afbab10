package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	// MetricsHandler がnilの場合は /metrics を公開しない
	MetricsHandler http.Handler

	// 認証
	CredentialService CredentialServiceInterface
	TokenIssuer       TokenIssuerInterface

	// タスク
	TaskService TaskServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS
//
// /register, /login, /refresh はIP単位のレート制限、/tasks はBearer認証の後に
// ユーザー単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.CredentialService, deps.TokenIssuer, collector)
	taskHandler := NewTaskHandler(deps.TaskService, collector)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		// リフレッシュトークンはハンドラー内で検証する
		r.Post("/refresh", authHandler.Refresh)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.TokenValidator, collector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/tasks", taskHandler.ListTasks)
		r.Post("/tasks", taskHandler.CreateTask)
		r.Put("/tasks/{id}", taskHandler.UpdateTask)
		r.Delete("/tasks/{id}", taskHandler.DeleteTask)
	})

	return r
}
