// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/taskman/internal/logger"
)

// サポートするストアドライバ。
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite3  = "sqlite3"
	StoreDriverMongoDB  = "mongodb"
)

// minJWTSecretLength はJWT署名鍵の最小バイト数。
const minJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver   string
	DatabaseURL   string
	MongoDatabase string
	StoreTimeout  time.Duration

	// Auth
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Observability
	LogLevel       string
	MetricsEnabled bool
}

// LoadDotEnv は.envファイルを読み込み、未設定の環境変数に反映する。
// 既に設定されている環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数の欠落はまとめて報告し、不正な値はエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	env := &envReader{}
	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverPostgres))
	cfg.MongoDatabase = getEnvString("MONGODB_DATABASE", "taskman")
	cfg.StoreTimeout = env.duration("STORE_TIMEOUT", 5*time.Second)
	cfg.AccessTokenTTL = env.duration("ACCESS_TOKEN_TTL", time.Hour)
	cfg.RefreshTokenTTL = env.duration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	cfg.BcryptCost = env.int("BCRYPT_COST", 10)
	cfg.RateLimitGeneral = env.int("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = env.int("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8000")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.MetricsEnabled = env.bool("METRICS_ENABLED", true)

	if err := cfg.validate(env.invalid); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は値の整合性を検証する。問題はすべてまとめて返す。
func (c *Config) validate(problems []string) error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite3, StoreDriverMongoDB:
	default:
		problems = append(problems, fmt.Sprintf("STORE_DRIVER must be one of postgres, sqlite3, mongodb (got %q)", c.StoreDriver))
	}
	if len(c.JWTSecretKey) < minJWTSecretLength {
		problems = append(problems, fmt.Sprintf("JWT_SECRET_KEY must be at least %d bytes", minJWTSecretLength))
	}
	if c.StoreTimeout <= 0 {
		problems = append(problems, "STORE_TIMEOUT must be positive")
	}
	if c.AccessTokenTTL <= 0 {
		problems = append(problems, "ACCESS_TOKEN_TTL must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		problems = append(problems, "REFRESH_TOKEN_TTL must be positive")
	}
	if c.RateLimitGeneral <= 0 {
		problems = append(problems, "RATE_LIMIT_GENERAL must be positive")
	}
	if c.RateLimitAuth <= 0 {
		problems = append(problems, "RATE_LIMIT_AUTH must be positive")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envReader は型付きの環境変数を読み取り、解釈できなかった変数を記録する。
type envReader struct {
	invalid []string
}

func (e *envReader) int(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid = append(e.invalid, fmt.Sprintf("%s must be an integer (got %q)", key, v))
		return defaultVal
	}
	return i
}

func (e *envReader) duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid = append(e.invalid, fmt.Sprintf("%s must be a duration such as 5s or 1h (got %q)", key, v))
		return defaultVal
	}
	return d
}

func (e *envReader) bool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid = append(e.invalid, fmt.Sprintf("%s must be a boolean (got %q)", key, v))
		return defaultVal
	}
	return b
}
