package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/writeflow/internal/auth"
	"github.com/hitoshi/writeflow/internal/middleware"
	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/notify"
	"github.com/hitoshi/writeflow/internal/validate"
)

// AuthServiceInterface は管理者ログインに必要なサービスインターフェース。
type AuthServiceInterface interface {
	Login(email, password string) (*auth.LoginResult, error)
}

// AdminHandler は管理画面向けのHTTPハンドラー。
type AdminHandler struct {
	auth        AuthServiceInterface
	blogs       BlogServiceInterface
	comments    CommentServiceInterface
	subscribers NewsletterServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(
	authService AuthServiceInterface,
	blogs BlogServiceInterface,
	comments CommentServiceInterface,
	subscribers NewsletterServiceInterface,
) *AdminHandler {
	return &AdminHandler{
		auth:        authService,
		blogs:       blogs,
		comments:    comments,
		subscribers: subscribers,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login は管理者ログインを処理する。
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	email, err := validate.Login(req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.auth.Login(email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			middleware.WriteErrorResponse(w, model.NewInvalidCredentialsError())
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"message":   "Login successful",
	})
}

// ListBlogs は下書きを含む全記事を返す。
// GET /api/admin/blogs
func (h *AdminHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blogs.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"blogs": toPostResponses(posts)})
}

// ListComments は承認状態に関わらず全コメントを返す。
// GET /api/admin/comments
func (h *AdminHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]adminCommentResponse, len(comments))
	for i, c := range comments {
		resp[i] = toAdminCommentResponse(c)
	}
	writeSuccess(w, http.StatusOK, envelope{"comments": resp})
}

// Dashboard はダッシュボードの集計値を返す。
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.blogs.Dashboard(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"dashboardData": dashboardResponse{
		Blogs:       d.Blogs,
		Comments:    d.Comments,
		Drafts:      d.Drafts,
		RecentBlogs: toPostResponses(d.RecentBlogs),
	}})
}

// ApproveComment はコメントを承認する。
// PATCH /api/admin/comments/approve-comment/{id}
func (h *AdminHandler) ApproveComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if _, err := h.comments.Approve(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "Comment approved successfully"})
}

// DeleteComment はコメントを削除する。
// DELETE /api/admin/comments/delete-comment/{id}
func (h *AdminHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.comments.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "Comment deleted successfully"})
}

// ListSubscribers は全購読者を返す。
// GET /api/admin/subscribers
func (h *AdminHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]subscriberResponse, len(subs))
	for i, s := range subs {
		resp[i] = subscriberResponse{ID: s.ID, Email: s.Email, CreatedAt: s.CreatedAt}
	}
	writeSuccess(w, http.StatusOK, envelope{"subscribers": resp})
}

// DeleteSubscriber は購読者を削除する。
// DELETE /api/admin/subscribers/{id}
func (h *AdminHandler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.subscribers.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "Subscriber deleted successfully"})
}

// NotifySubscribers は公開済み記事を全購読者にメールで通知する。
// 送信は同期的に行い、結果件数を返す。
// POST /api/admin/blogs/{id}/notify
func (h *AdminHandler) NotifySubscribers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// クライアントの切断で送信が途中で止まらないようにする
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), notify.DefaultDispatchTimeout)
	defer cancel()

	report, err := h.blogs.NotifySubscribers(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	adminEmail, _ := middleware.AdminEmailFromContext(r.Context())
	slog.Info("subscribers notified manually",
		slog.String("post_id", id),
		slog.String("admin_email", adminEmail),
		slog.Int("sent", report.Sent),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)

	writeSuccess(w, http.StatusOK, envelope{
		"message": "Notification sent",
		"sent":    report.Sent,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})
}
