// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/writeflow/internal/middleware"
	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/validate"
)

// maxJSONBodyBytes はJSONリクエストボディの上限。
const maxJSONBodyBytes = 1 << 20

// envelope は成功レスポンスの共通形式。successは常にtrue。
type envelope map[string]any

// writeSuccess は{success:true, ...payload}形式でレスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, status int, payload envelope) {
	body := envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// APIError以外は内部エラーとしてログに記録し、詳細は返さない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// decodeJSON はリクエストボディをvにデコードする。
// 不正なJSONは400のAPIErrorを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("Invalid request body")
	}
	return nil
}

// pathID はURLパラメータidを取得し、形式を検証して小文字に正規化する。
func pathID(r *http.Request) (string, error) {
	return validate.ID(chi.URLParam(r, "id"))
}

// notFoundHandler は未定義ルートに統一エラーフォーマットで404を返す。
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, model.NewRouteNotFoundError())
}

// methodNotAllowedHandler は許可されていないメソッドに405を返す。
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, &model.APIError{
		Status:   http.StatusMethodNotAllowed,
		Code:     "METHOD_NOT_ALLOWED",
		Message:  "Method not allowed",
		Category: "system",
	})
}
