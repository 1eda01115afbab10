// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

const (
	msgMissingAuthHeader = "Missing Authorization Header"
	msgBadAuthHeader     = "Bad Authorization header. Expected 'Authorization: Bearer <JWT>'"
)

// TokenValidator はトークン検証に必要なインターフェース。
// auth.TokenServiceの部分集合として定義する。
type TokenValidator interface {
	Validate(token string, expected model.TokenKind) (string, error)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(r *http.Request) (string, *model.APIError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", model.NewUnauthorizedError(msgMissingAuthHeader)
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", model.NewUnauthorizedError(msgBadAuthHeader)
	}
	return token, nil
}

// NewBearerAuthMiddleware はBearerトークンをアクセストークンとして検証するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 検証に失敗した場合は401を返し、後続のハンドラーは実行しない。
func NewBearerAuthMiddleware(validator TokenValidator, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, apiErr := BearerToken(r)
			if apiErr != nil {
				collector.RecordAuthEvent("token", "missing")
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}

			userID, err := validator.Validate(token, model.TokenKindAccess)
			if err != nil {
				var tokenErr *model.APIError
				if !errors.As(err, &tokenErr) {
					tokenErr = model.NewTokenInvalidError()
				}
				collector.RecordAuthEvent("token", strings.ToLower(tokenErr.Code))
				WriteErrorResponse(w, http.StatusUnauthorized, tokenErr)
				return
			}

			setRequestUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
