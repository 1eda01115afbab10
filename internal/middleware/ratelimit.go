package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // タスクAPIのレート（req/sec）。ユーザー単位
	GeneralBurst    int           // タスクAPIのバーストサイズ
	AuthRate        rate.Limit    // 認証APIのレート（req/sec）。クライアントIP単位
	AuthBurst       int           // 認証APIのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を生成する。
func NewRateLimiterConfig(generalPerMinute, authPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		AuthRate:        rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:       authPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// タスクAPI 120 req/min/user、認証API 10 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10)
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキー（ユーザーIDまたはIP）ごとのリミッターの集合。
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*keyedLimiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*keyedLimiter),
	}
}

// get はキーのリミッターを取得または作成し、アクセス時刻を更新する。
func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	kl, exists := s.limiters[key]
	if !exists {
		kl = &keyedLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = now
	return kl.limiter
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter はタスクAPI（ユーザー単位）と認証API（IP単位）のレート制限を管理する。
type RateLimiter struct {
	config    RateLimiterConfig
	general   *limiterSet
	auth      *limiterSet
	collector metrics.MetricsCollector

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, collector metrics.MetricsCollector) *RateLimiter {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	rl := &RateLimiter{
		config:    config,
		general:   newLimiterSet(config.GeneralRate, config.GeneralBurst),
		auth:      newLimiterSet(config.AuthRate, config.AuthBurst),
		collector: collector,
		stopCh:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はタスクAPIのレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（BearerAuthMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(msgMissingAuthHeader))
				return
			}

			if !rl.general.get(userID, time.Now()).Allow() {
				rl.reject(w, "general", rl.config.GeneralRate, slog.String("user_id", userID))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware は登録・ログイン・リフレッシュのレート制限ミドルウェアを返す。
// 未認証のリクエストが対象のため、接続元IPをキーにする。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.auth.get(ip, time.Now()).Allow() {
				rl.reject(w, "auth", rl.config.AuthRate, slog.String("client_ip", ip))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているタスクAPIリミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// AuthLimiterCount は現在管理されている認証APIリミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.len()
}

func (rl *RateLimiter) reject(w http.ResponseWriter, limitType string, r rate.Limit, key slog.Attr) {
	writeRateLimitResponse(w, r)
	rl.collector.RecordRateLimited(limitType)
	slog.Warn("rate limit exceeded",
		key,
		slog.String("limit_type", limitType),
	)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.evict(now, ttl)
	rl.auth.evict(now, ttl)
}

// clientIP はRemoteAddrからポートを除いたIPアドレスを返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     model.ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	})
}
