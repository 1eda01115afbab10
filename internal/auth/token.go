package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/model"
)

// TokenConfig はトークンサービスの設定。
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// tokenClaims はtaskmanが発行するJWTのクレーム。
type tokenClaims struct {
	jwt.RegisteredClaims
	Type  model.TokenKind `json:"type"`
	Fresh bool            `json:"fresh"`
}

// TokenService はHS256署名のアクセストークンとリフレッシュトークンを発行・検証する。
// サーバー側でトークンを保持しないため、検証は署名と有効期限のみで行う。
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if config.AccessTTL <= 0 || config.RefreshTTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}

	secret := make([]byte, len(config.Secret))
	copy(secret, config.Secret)

	return &TokenService{
		secret:     secret,
		accessTTL:  config.AccessTTL,
		refreshTTL: config.RefreshTTL,
		now:        time.Now,
	}, nil
}

// IssueAccessToken はAPI呼び出し用のアクセストークンを発行する。
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, model.TokenKindAccess, s.accessTTL, true)
}

// IssueRefreshToken はアクセストークン再発行用のリフレッシュトークンを発行する。
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, model.TokenKindRefresh, s.refreshTTL, false)
}

// IssuePair はログイン時のトークンの組を発行する。
func (s *TokenService) IssuePair(userID string) (*model.TokenPair, error) {
	access, err := s.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Validate はトークンの署名・有効期限・種別を検証し、ユーザーIDを返す。
// 失敗時はTOKEN_EXPIRED、TOKEN_INVALID、TOKEN_KIND_MISMATCHのいずれかのAPIErrorを返す。
func (s *TokenService) Validate(token string, expected model.TokenKind) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Type != expected {
		return "", model.NewTokenKindMismatchError(expected)
	}
	return claims.Subject, nil
}

// Refresh はリフレッシュトークンを検証し、同じユーザーの新しいアクセストークンを発行する。
// 発行するアクセストークンはfreshではない。リフレッシュトークン自体は失効させない。
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	userID, err := s.Validate(refreshToken, model.TokenKindRefresh)
	if err != nil {
		return "", err
	}
	return s.issue(userID, model.TokenKindAccess, s.accessTTL, false)
}

func (s *TokenService) issue(userID string, kind model.TokenKind, ttl time.Duration, fresh bool) (string, error) {
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Type:  kind,
		Fresh: fresh,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *TokenService) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewTokenExpiredError()
		}
		return nil, model.NewTokenInvalidError()
	}
	if claims.Subject == "" {
		return nil, model.NewTokenInvalidError()
	}
	return claims, nil
}
