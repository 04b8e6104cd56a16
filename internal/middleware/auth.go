// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/writeflow/internal/auth"
	"github.com/hitoshi/writeflow/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminEmailContextKey はリクエストコンテキストに管理者emailを格納するためのキー。
var adminEmailContextKey = contextKey("admin_email")

// TokenVerifier は管理者トークンの検証に必要なインターフェース。
// auth.Serviceおよびauth.TokenIssuerが実装する。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAdminAuthMiddleware はAuthorizationヘッダーのトークンを検証するミドルウェアを返す。
// 認証済み管理者のemailをリクエストコンテキストに注入する。
// トークンの欠落・不正には401(expired=false)、期限切れには401(expired=true)を返す。
func NewAdminAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			token := bearerToken(r)
			if token == "" {
				WriteErrorResponse(w, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを検証
			email, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					WriteErrorResponse(w, model.NewTokenExpiredError())
					return
				}
				slog.Warn("admin token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, model.NewUnauthorizedError())
				return
			}

			// 3. 管理者emailをコンテキストとリクエストログに注入
			if meta := requestMetaFromContext(r.Context()); meta != nil {
				meta.adminEmail = email
			}
			ctx := context.WithValue(r.Context(), adminEmailContextKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
// "Bearer "接頭辞は省略でき、スキーム名の大文字小文字は区別しない。
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(header, "Bearer") {
		return ""
	}
	return header
}

// AdminEmailFromContext はリクエストコンテキストから管理者emailを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func AdminEmailFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(adminEmailContextKey).(string)
	if !ok || email == "" {
		return "", fmt.Errorf("admin email not found in context")
	}
	return email, nil
}

// ContextWithAdminEmail はコンテキストに管理者emailを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAdminEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, adminEmailContextKey, email)
}
