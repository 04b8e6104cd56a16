// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// HTTPステータスとUIに表示するメッセージを保持する。
type APIError struct {
	Status     int    // HTTPステータスコード
	Code       string // エラーコード
	Message    string // エラーメッセージ
	Category   string // カテゴリ: auth, validation, content, rate_limit, upstream, system
	Action     string // ユーザー向け対処方法（英語）
	RetryAfter int    // 429の場合の再試行までの秒数
	Expired    bool   // 401の場合、認証情報の期限切れかどうか
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// HTTPStatus はエラーに対応するHTTPステータスを返す。未設定の場合は500。
func (e *APIError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeInvalidLogin       = "INVALID_CREDENTIALS"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeSubscriberNotFound = "SUBSCRIBER_NOT_FOUND"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラー（400）を生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the submitted fields and try again.",
	}
}

// NewInvalidIDError はID形式エラー（400）を生成する。
func NewInvalidIDError() *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     ErrCodeInvalidID,
		Message:  "Invalid ID format",
		Category: "validation",
		Action:   "Use a 24-character hexadecimal ID.",
	}
}

// NewUnauthorizedError は認証情報の欠落・不正（401）を生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Status:   http.StatusUnauthorized,
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized Access",
		Category: "auth",
		Action:   "Log in to continue.",
	}
}

// NewTokenExpiredError は認証情報の期限切れ（401, expired=true）を生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Status:   http.StatusUnauthorized,
		Code:     ErrCodeTokenExpired,
		Message:  "Session expired. Please login again.",
		Category: "auth",
		Action:   "Log in again to continue.",
		Expired:  true,
	}
}

// NewInvalidCredentialsError はログイン失敗（401）を生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Status:   http.StatusUnauthorized,
		Code:     ErrCodeInvalidLogin,
		Message:  "Invalid Credentials",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewPostNotFoundError は記事未検出エラー（404）を生成する。
func NewPostNotFoundError() *APIError {
	return &APIError{
		Status:   http.StatusNotFound,
		Code:     ErrCodePostNotFound,
		Message:  "Blog not found",
		Category: "content",
		Action:   "Check the blog ID.",
	}
}

// NewCommentNotFoundError はコメント未検出エラー（404）を生成する。
func NewCommentNotFoundError() *APIError {
	return &APIError{
		Status:   http.StatusNotFound,
		Code:     ErrCodeCommentNotFound,
		Message:  "Comment not found",
		Category: "content",
		Action:   "Check the comment ID.",
	}
}

// NewSubscriberNotFoundError は購読者未検出エラー（404）を生成する。
func NewSubscriberNotFoundError() *APIError {
	return &APIError{
		Status:   http.StatusNotFound,
		Code:     ErrCodeSubscriberNotFound,
		Message:  "Subscriber not found",
		Category: "content",
		Action:   "Check the subscriber ID.",
	}
}

// NewRouteNotFoundError は未定義ルートへのアクセス（404）を生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Status:   http.StatusNotFound,
		Code:     ErrCodeRouteNotFound,
		Message:  "Route not found",
		Category: "system",
	}
}

// NewRateLimitError はレート制限超過エラー（429）を生成する。
func NewRateLimitError(message string, retryAfter int) *APIError {
	return &APIError{
		Status:     http.StatusTooManyRequests,
		Code:       ErrCodeRateLimited,
		Message:    message,
		Category:   "rate_limit",
		Action:     fmt.Sprintf("Try again in %d seconds.", retryAfter),
		RetryAfter: retryAfter,
	}
}

// NewUpstreamError は外部プロバイダー（AI・画像・メール）の失敗（502）を生成する。
// 管理画面で「再試行」を促すメッセージとして表示される。
func NewUpstreamError(message string) *APIError {
	return &APIError{
		Status:   http.StatusBadGateway,
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "upstream",
		Action:   "Wait a moment and try again.",
	}
}

// NewInternalError は内部サーバーエラー（500）を生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Status:   http.StatusInternalServerError,
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
