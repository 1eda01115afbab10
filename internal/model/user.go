// Package model はドメインモデルを定義する。
package model

// User はサービス利用ユーザーを表す。
// 登録後は変更されない。
type User struct {
	ID           string
	Username     string
	PasswordHash string
}

// TokenKind はJWTの種別を表す。
type TokenKind string

const (
	// TokenKindAccess はAPI呼び出しに使う短命トークン。
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh はアクセストークン再発行専用の長命トークン。
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair はログイン時に発行されるトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
