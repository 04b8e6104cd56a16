package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/hitoshi/writeflow/internal/media"
	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/notify"
	"github.com/hitoshi/writeflow/internal/security"
	"github.com/hitoshi/writeflow/internal/validate"
)

// multipartMemory はmultipartフォームをメモリに保持する上限。超過分は一時ファイルに書かれる。
const multipartMemory = 8 << 20

// BlogServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type BlogServiceInterface interface {
	ListPublished(ctx context.Context) ([]*model.Post, error)
	ListAll(ctx context.Context) ([]*model.Post, error)
	// GetAndCountView は記事を取得し、閲覧数を1増やす。
	GetAndCountView(ctx context.Context, id string) (*model.Post, error)
	Create(ctx context.Context, in model.PostUpdate) (*model.Post, error)
	Update(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	TogglePublish(ctx context.Context, id string) (*model.Post, error)
	NotifySubscribers(ctx context.Context, id string) (notify.Report, error)
	Dashboard(ctx context.Context) (*model.Dashboard, error)
}

// CommentServiceInterface はコメント関連のハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	ListApproved(ctx context.Context, postID string) ([]*model.Comment, error)
	ListAll(ctx context.Context) ([]*model.CommentWithPost, error)
	Create(ctx context.Context, postID, name, content string) (*model.Comment, error)
	Approve(ctx context.Context, id string) (*model.Comment, error)
	Delete(ctx context.Context, id string) error
}

// BlogHandler は記事とコメントのHTTPハンドラー。
type BlogHandler struct {
	blogs     BlogServiceInterface
	comments  CommentServiceInterface
	images    media.Store
	maxUpload int64
}

// NewBlogHandler はBlogHandlerを生成する。
// imagesがnilの場合、画像ファイルのアップロードは受け付けない。
func NewBlogHandler(blogs BlogServiceInterface, comments CommentServiceInterface, images media.Store, maxUpload int64) *BlogHandler {
	if maxUpload <= 0 {
		maxUpload = media.DefaultMaxBytes
	}
	return &BlogHandler{
		blogs:     blogs,
		comments:  comments,
		images:    images,
		maxUpload: maxUpload,
	}
}

// ListPublished は公開済み記事を新しい順に返す。
// GET /api/blogs/all
func (h *BlogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blogs.ListPublished(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"blogs": toPostResponses(posts)})
}

// GetBlog は記事を返し、閲覧数を1増やす。
// GET /api/blogs/{id}
func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	post, err := h.blogs.GetAndCountView(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"blog": toPostResponse(post)})
}

// AddBlog は記事を作成する。
// multipart/form-dataのblogフィールドにJSON、imageフィールドに画像ファイルを受け取る。
// POST /api/blogs/add
func (h *BlogHandler) AddBlog(w http.ResponseWriter, r *http.Request) {
	in, err := h.readBlogInput(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	post, err := h.blogs.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{
		"message": "Blog added successfully",
		"blog":    toPostResponse(post),
	})
}

// UpdateBlog は記事を更新する。画像を指定しなかった場合は既存の画像を維持する。
// PUT /api/blogs/update/{id}
func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	in, err := h.readBlogInput(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	post, err := h.blogs.Update(r.Context(), id, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Blog updated successfully",
		"blog":    toPostResponse(post),
	})
}

// DeleteBlog は記事とそのコメントを削除する。
// DELETE /api/blogs/{id}
func (h *BlogHandler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.blogs.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "Blog deleted successfully"})
}

// TogglePublish は記事の公開状態を反転する。
// POST /api/blogs/toggle-publish/{id}
func (h *BlogHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	post, err := h.blogs.TogglePublish(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Blog publish status updated",
		"blog":    toPostResponse(post),
	})
}

// commentRequest はコメント投稿リクエストのボディ。
type commentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// AddComment は記事にコメントを投稿する。コメントは承認されるまで公開されない。
// POST /api/blogs/add-comment/{id}
func (h *BlogHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if _, err := h.comments.Create(r.Context(), id, req.Name, req.Content); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{"message": "Comment added successfully"})
}

// ListComments は記事の承認済みコメントを返す。
// GET /api/blogs/comments/{id}
func (h *BlogHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	comments, err := h.comments.ListApproved(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]commentResponse, len(comments))
	for i, c := range comments {
		resp[i] = toCommentResponse(c)
	}
	writeSuccess(w, http.StatusOK, envelope{"comments": resp})
}

// readBlogInput は記事の入力を読み取り、画像を解決したPostUpdateを返す。
// アップロード画像はimageUrlより優先する。
func (h *BlogHandler) readBlogInput(w http.ResponseWriter, r *http.Request) (model.PostUpdate, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req blogRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return model.PostUpdate{}, err
		}
		return h.resolveImageURL(req)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.PostUpdate{}, model.NewValidationError(h.tooLargeMessage())
		}
		return model.PostUpdate{}, model.NewValidationError("Invalid form data")
	}
	defer r.MultipartForm.RemoveAll()

	raw := r.FormValue("blog")
	if strings.TrimSpace(raw) == "" {
		return model.PostUpdate{}, model.NewValidationError("Blog data is required")
	}
	var req blogRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return model.PostUpdate{}, model.NewValidationError("Invalid blog data")
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return h.resolveImageURL(req)
	}
	if err != nil {
		return model.PostUpdate{}, model.NewValidationError("Invalid image file")
	}
	defer file.Close()

	in := req.toPostUpdate()
	// 保存した画像が使われずに残らないよう、先に本文を検証する
	if err := validate.Post(in.Title, in.Body, in.Category); err != nil {
		return model.PostUpdate{}, err
	}
	if h.images == nil {
		return model.PostUpdate{}, model.NewUpstreamError("Image uploads are not available")
	}

	imageURL, err := h.images.Save(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrInvalidImage):
			return model.PostUpdate{}, model.NewValidationError("Invalid image file")
		case errors.Is(err, media.ErrImageTooLarge):
			return model.PostUpdate{}, model.NewValidationError(h.tooLargeMessage())
		}
		return model.PostUpdate{}, fmt.Errorf("failed to store uploaded image: %w", err)
	}

	slog.Info("cover image uploaded", slog.String("url", imageURL))
	in.Image = &imageURL
	return in, nil
}

// resolveImageURL はimageUrlを検証してPostUpdateに設定する。空の場合は画像を指定しない。
func (h *BlogHandler) resolveImageURL(req blogRequest) (model.PostUpdate, error) {
	in := req.toPostUpdate()
	ref := strings.TrimSpace(req.ImageURL)
	if ref == "" {
		return in, nil
	}
	if err := security.ValidateImageRef(ref); err != nil {
		return model.PostUpdate{}, model.NewValidationError("Invalid image URL")
	}
	in.Image = &ref
	return in, nil
}

func (h *BlogHandler) tooLargeMessage() string {
	return fmt.Sprintf("Image must be %dMB or smaller", h.maxUpload>>20)
}
