package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/writeflow/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 成功レスポンスと同じく success フィールドを先頭に持つ。
type ErrorResponseBody struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Action     string `json:"action,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Expired    *bool  `json:"expired,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはAPIErrorから決定する。
// 401ではexpiredを常に含め、429ではRetry-Afterヘッダーを付与する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	status := apiErr.HTTPStatus()

	body := ErrorResponseBody{
		Success: false,
		Message: apiErr.Message,
		Code:    apiErr.Code,
		Action:  apiErr.Action,
	}

	if status == http.StatusUnauthorized {
		expired := apiErr.Expired
		body.Expired = &expired
	}

	if status == http.StatusTooManyRequests && apiErr.RetryAfter > 0 {
		body.RetryAfter = apiErr.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}
