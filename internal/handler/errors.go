// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// messageResponse は処理結果メッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvに読み込む。
// 空ボディ・不正なJSON・サイズ超過はいずれもINVALID_REQUESTとして扱う。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) *model.APIError {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if !errors.Is(err, io.EOF) {
			slog.Debug("failed to decode request body", slog.String("error", err.Error()))
		}
		return model.NewInvalidRequestError()
	}
	return nil
}

// writeAPIErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeMissingField, model.ErrCodeInvalidStatus,
		model.ErrCodeInvalidDueDate, model.ErrCodePasswordTooLong:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeTokenExpired,
		model.ErrCodeTokenInvalid, model.ErrCodeTokenKindMismatch:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateUser:
		return http.StatusConflict
	case model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// operationResult はエラーをメトリクス用の結果ラベルに変換する。
func operationResult(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return "error"
	}
	switch mapAPIErrorToHTTPStatus(apiErr) {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusConflict:
		return "conflict"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}
