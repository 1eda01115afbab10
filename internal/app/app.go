// Package app はアプリケーションの初期化・依存関係の組み立て・起動を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/docstore"
	"github.com/hitoshi/taskman/internal/handler"
	"github.com/hitoshi/taskman/internal/logger"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/task"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの待機上限。
	shutdownTimeout = 30 * time.Second
	// connectTimeout は起動時のストア疎通確認のタイムアウト。
	connectTimeout = 10 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	root.SetOut(w)
	root.SetErr(w)
	return root.ExecuteContext(context.Background())
}

// storeHandle は開いたストアとその後始末をまとめたもの。
type storeHandle struct {
	store  docstore.Store
	pinger handler.HealthChecker
	close  func() error

	// mongo はMongoDB使用時のみ設定される
	mongo *docstore.MongoStore
}

// openStore は設定されたドライバでストアを開き、疎通を確認する。
func openStore(ctx context.Context, cfg *config.Config) (*storeHandle, error) {
	var h *storeHandle

	switch cfg.StoreDriver {
	case config.StoreDriverMongoDB:
		ms, err := docstore.ConnectMongo(ctx, cfg.DatabaseURL, cfg.MongoDatabase, repository.Schema, cfg.StoreTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		h = &storeHandle{
			store:  ms,
			pinger: ms,
			close:  func() error { return ms.Close(context.Background()) },
			mongo:  ms,
		}
	default:
		db, err := database.Open(cfg.StoreDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		ss := docstore.NewSQLStore(db, repository.Schema, cfg.StoreTimeout)
		h = &storeHandle{store: ss, pinger: ss, close: db.Close}
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := h.pinger.PingContext(pingCtx); err != nil {
		h.close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	slog.Info("store connection established", slog.String("driver", cfg.StoreDriver))
	return h, nil
}

// applySchema はストアのスキーマを適用する。
// SQLドライバではマイグレーションを、MongoDBではインデックス作成を行う。
func applySchema(ctx context.Context, cfg *config.Config, h *storeHandle) error {
	if h.mongo != nil {
		if err := h.mongo.EnsureIndexes(ctx, repository.MongoIndexes); err != nil {
			return fmt.Errorf("failed to ensure indexes: %w", err)
		}
		return nil
	}
	if err := database.RunMigrations(cfg.StoreDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// buildHandler は全依存関係をワイヤリングしたHTTPハンドラーを構築する。
// 返り値のstopはレートリミッターのバックグラウンド処理を停止する。
func buildHandler(cfg *config.Config, h *storeHandle, log *slog.Logger) (http.Handler, func(), error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewDocumentUserRepo(h.store)
	taskRepo := repository.NewDocumentTaskRepo(h.store)

	// 2. ドメインサービスの初期化
	tokenService, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecretKey),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}
	authService := auth.NewService(userRepo, auth.ServiceConfig{BcryptCost: cfg.BcryptCost})
	taskService := task.NewService(taskRepo)

	// 3. メトリクス
	var collector metrics.MetricsCollector = metrics.NopCollector{}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(reg)
		metricsHandler = metrics.Handler(reg)
	}

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		TokenValidator:    tokenService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Metrics:           collector,
		MetricsHandler:    metricsHandler,

		CredentialService: authService,
		TokenIssuer:       tokenService,

		TaskService: handler.NewTaskServiceAdapter(taskService),

		HealthChecker: h.pinger,
	})

	return router, rateLimiter.Stop, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, migrateFirst bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting application",
		slog.String("command", string(CommandServe)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	h, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.close()

	if migrateFirst {
		if err := applySchema(ctx, cfg, h); err != nil {
			return err
		}
		slog.Info("store schema applied")
	}

	router, stopLimiter, err := buildHandler(cfg, h, slog.Default())
	if err != nil {
		return err
	}
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はストアのスキーマを適用する。
// SQLドライバではすべての未適用マイグレーションを順番に適用する。
func runMigrate(ctx context.Context, cfg *config.Config) error {
	slog.Info("running store migrations",
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if cfg.StoreDriver == config.StoreDriverMongoDB {
		h, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer h.close()
		if err := applySchema(ctx, cfg, h); err != nil {
			return err
		}
	} else if err := database.RunMigrations(cfg.StoreDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("store migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/health", port), nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URL形式でない値（SQLiteのファイルパスなど）はそのまま返す。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User == nil {
		return raw
	}
	return u.Redacted()
}
