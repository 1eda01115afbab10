// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
// Messageは既存クライアントとの互換性のため英語の文言を維持する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidDueDate     = "INVALID_DUE_DATE"
	ErrCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid       = "TOKEN_INVALID"
	ErrCodeTokenKindMismatch  = "TOKEN_KIND_MISMATCH"
	ErrCodeDuplicateUser      = "DUPLICATE_USER"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid request body",
		Category: "validation",
		Action:   "Send a valid JSON request body.",
	}
}

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
// fieldは "Title" のように先頭大文字の表示名を渡す。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("%s is required", field),
		Category: "validation",
		Action:   fmt.Sprintf("Provide a non-empty %s.", field),
	}
}

// NewInvalidStatusError は不正なタスクステータスのエラーを生成する。
func NewInvalidStatusError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  "Invalid status",
		Category: "validation",
		Action:   "Use one of: to do, in progress, done.",
	}
}

// NewDueDateRequiredError は期日未指定のエラーを生成する。
func NewDueDateRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDueDate,
		Message:  "Due date is required",
		Category: "validation",
		Action:   "Provide dueDate in YYYY-MM-DD format.",
	}
}

// NewInvalidDueDateError は期日の形式不正エラーを生成する。
func NewInvalidDueDateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDueDate,
		Message:  "Invalid due date format. Expected format: YYYY-MM-DD",
		Category: "validation",
		Action:   "Provide dueDate in YYYY-MM-DD format.",
	}
}

// NewPasswordTooLongError はbcryptの上限(72バイト)を超えるパスワードのエラーを生成する。
func NewPasswordTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  "Password is too long",
		Category: "validation",
		Action:   "Use a password of at most 72 bytes.",
	}
}

// NewUnauthorizedError は認証情報欠落・形式不正のエラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: "auth",
		Action:   "Log in and send the access token as 'Authorization: Bearer <token>'.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー未登録とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check the username and password.",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "Token has expired",
		Category: "auth",
		Action:   "Refresh the access token or log in again.",
	}
}

// NewTokenInvalidError は署名不正・形式不正トークンのエラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "Token is invalid",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewTokenKindMismatchError はアクセストークンとリフレッシュトークンの取り違えエラーを生成する。
func NewTokenKindMismatchError(want TokenKind) *APIError {
	return &APIError{
		Code:     ErrCodeTokenKindMismatch,
		Message:  fmt.Sprintf("Only %s tokens are allowed", want),
		Category: "auth",
		Action:   "Send the correct kind of token.",
	}
}

// NewDuplicateUserError はユーザー名重複エラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "Username already exists",
		Category: "validation",
		Action:   "Choose a different username.",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 存在しない場合と他ユーザーの所有物である場合を区別しない。
func NewTaskNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  "Task not found",
		Category: "task",
		Action:   "Check the task ID.",
	}
}

// NewStoreUnavailableError はストアへの接続失敗・タイムアウトのエラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "Storage is temporarily unavailable",
		Category: "system",
		Action:   "Please retry later.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Please retry later.",
	}
}
