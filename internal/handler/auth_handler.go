package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// CredentialServiceInterface は認証ハンドラーが必要とする資格情報サービスのインターフェース。
type CredentialServiceInterface interface {
	Register(ctx context.Context, username, password string) (string, error)
	Verify(ctx context.Context, username, password string) (string, bool, error)
}

// TokenIssuerInterface は認証ハンドラーが必要とするトークン発行のインターフェース。
type TokenIssuerInterface interface {
	IssuePair(userID string) (*model.TokenPair, error)
	Refresh(refreshToken string) (string, error)
}

// credentialsRequest は登録・ログインのリクエストボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse はトークン再発行時のレスポンス。
type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// AuthHandler はユーザー登録・ログイン・トークン再発行のHTTPハンドラー。
type AuthHandler struct {
	credentials CredentialServiceInterface
	tokens      TokenIssuerInterface
	metrics     metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(credentials CredentialServiceInterface, tokens TokenIssuerInterface, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthHandler{
		credentials: credentials,
		tokens:      tokens,
		metrics:     collector,
	}
}

// Register はユーザーを登録する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		h.metrics.RecordAuthEvent("register", "invalid")
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	_, err := h.credentials.Register(r.Context(), req.Username, req.Password)
	h.metrics.RecordAuthEvent("register", operationResult(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully"})
}

// Login は資格情報を検証し、アクセストークンとリフレッシュトークンを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		h.metrics.RecordAuthEvent("login", "invalid")
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	userID, ok, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordAuthEvent("login", operationResult(err))
		handleServiceError(w, err)
		return
	}
	if !ok {
		h.metrics.RecordAuthEvent("login", "unauthorized")
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	}

	pair, err := h.tokens.IssuePair(userID)
	if err != nil {
		h.metrics.RecordAuthEvent("login", "error")
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthEvent("login", "success")
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
// リフレッシュトークン自体はローテーションしない。
// POST /refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, apiErr := middleware.BearerToken(r)
	if apiErr != nil {
		h.metrics.RecordAuthEvent("refresh", "unauthorized")
		writeAPIErrorResponse(w, http.StatusUnauthorized, apiErr)
		return
	}

	accessToken, err := h.tokens.Refresh(token)
	h.metrics.RecordAuthEvent("refresh", operationResult(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
}
