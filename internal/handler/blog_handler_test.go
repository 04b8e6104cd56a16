package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/writeflow/internal/media"
	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/newsletter"
)

const validBlogJSON = `{
	"title": "Understanding Go Interfaces",
	"subTitle": "A practical tour",
	"description": "<p>Interfaces in Go are satisfied implicitly, which keeps packages decoupled.</p>",
	"category": "Technology",
	"isPublished": true,
	"tags": "go, interfaces"
}`

// multipartBlog はblogフィールドと任意のimageファイルを持つmultipartリクエストを組み立てる。
func multipartBlog(t *testing.T, method, path, blogJSON string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("blog", blogJSON); err != nil {
		t.Fatal(err)
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "cover.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	return req
}

func TestBlogHandler_ListPublished(t *testing.T) {
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		listPublishedFn: func(ctx context.Context) ([]*model.Post, error) {
			return []*model.Post{{ID: testID, Title: "Hello", Body: "<p>x</p>", IsPublished: true}}, nil
		},
	}

	body := assertSuccess(t, serve(t, NewRouter(deps), http.MethodGet, "/api/blogs/all", "", ""), http.StatusOK)
	blogs, ok := body["blogs"].([]any)
	if !ok || len(blogs) != 1 {
		t.Fatalf("blogs = %v", body["blogs"])
	}
	blog := blogs[0].(map[string]any)
	if blog["_id"] != testID || blog["title"] != "Hello" || blog["description"] != "<p>x</p>" {
		t.Errorf("blog = %v", blog)
	}
	if tags, ok := blog["tags"].([]any); !ok || len(tags) != 0 {
		t.Errorf("tags = %v, want empty array", blog["tags"])
	}
}

func TestBlogHandler_ListPublished_StoreFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		listPublishedFn: func(ctx context.Context) ([]*model.Post, error) {
			return nil, errors.New("failed to list posts: connection reset")
		},
	}

	w := serve(t, NewRouter(deps), http.MethodGet, "/api/blogs/all", "", "")
	body := assertError(t, w, http.StatusInternalServerError, "Internal server error")
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Errorf("internal details leaked: %v", body)
	}
}

func TestBlogHandler_GetBlog(t *testing.T) {
	var gotID string
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		getFn: func(ctx context.Context, id string) (*model.Post, error) {
			gotID = id
			return &model.Post{ID: id, Title: "Hi", Views: 3}, nil
		},
	}
	router := NewRouter(deps)

	body := assertSuccess(t, serve(t, router, http.MethodGet, "/api/blogs/"+testID, "", ""), http.StatusOK)
	if gotID != testID {
		t.Errorf("service got id %q", gotID)
	}
	if blog := body["blog"].(map[string]any); blog["views"] != float64(3) {
		t.Errorf("views = %v", blog["views"])
	}

	assertError(t, serve(t, router, http.MethodGet, "/api/blogs/12345", "", ""), http.StatusBadRequest, "Invalid ID format")

	assertSuccess(t, serve(t, router, http.MethodGet, "/api/blogs/"+strings.ToUpper(testID), "", ""), http.StatusOK)
	if gotID != testID {
		t.Errorf("uppercase id should reach the service lowercased, got %q", gotID)
	}
}

func TestBlogHandler_GetBlog_NotFound(t *testing.T) {
	router := NewRouter(newTestDeps(t))
	assertError(t, serve(t, router, http.MethodGet, "/api/blogs/"+testID, "", ""), http.StatusNotFound, "Blog not found")
}

func TestBlogHandler_AddBlog_Multipart(t *testing.T) {
	var saved string
	var got model.PostUpdate
	deps := newTestDeps(t)
	deps.ImageStore = &mockImageStore{
		saveFn: func(ctx context.Context, name string, r io.Reader) (string, error) {
			data, _ := io.ReadAll(r)
			saved = string(data)
			return "/uploads/abc-cover.jpg", nil
		},
	}
	deps.BlogService = &mockBlogService{
		createFn: func(ctx context.Context, in model.PostUpdate) (*model.Post, error) {
			got = in
			return &model.Post{ID: testID, Title: in.Title, Image: *in.Image}, nil
		},
	}

	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, multipartBlog(t, http.MethodPost, "/api/blogs/add", validBlogJSON, []byte("png-data")))

	body := assertSuccess(t, w, http.StatusCreated)
	if body["message"] != "Blog added successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if saved != "png-data" {
		t.Errorf("stored image = %q", saved)
	}
	if got.Image == nil || *got.Image != "/uploads/abc-cover.jpg" {
		t.Errorf("image = %v", got.Image)
	}
	if got.Title != "Understanding Go Interfaces" || got.Subtitle == nil || *got.Subtitle != "A practical tour" || got.Category != model.CategoryTechnology {
		t.Errorf("post update = %+v", got)
	}
	if got.IsPublished == nil || !*got.IsPublished {
		t.Errorf("isPublished = %v", got.IsPublished)
	}
	if got.Tags == nil || len(*got.Tags) != 2 {
		t.Errorf("tags = %v, want comma separated string split", got.Tags)
	}
}

func TestBlogHandler_AddBlog_ImageURL(t *testing.T) {
	var got model.PostUpdate
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		createFn: func(ctx context.Context, in model.PostUpdate) (*model.Post, error) {
			got = in
			return &model.Post{ID: testID}, nil
		},
	}
	router := NewRouter(deps)

	blogJSON := strings.Replace(validBlogJSON, `"isPublished": true`, `"imageUrl": "https://cdn.example.com/a.jpg"`, 1)
	w := serve(t, router, http.MethodPost, "/api/blogs/add", blogJSON, adminToken(t))
	assertSuccess(t, w, http.StatusCreated)
	if got.Image == nil || *got.Image != "https://cdn.example.com/a.jpg" {
		t.Errorf("image = %v", got.Image)
	}
	if got.IsPublished != nil {
		t.Errorf("isPublished should be unset, got %v", *got.IsPublished)
	}
}

func TestBlogHandler_AddBlog_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		store   media.Store
		message string
	}{
		{
			name: "internal image URL",
			req: func(t *testing.T) *http.Request {
				blog := strings.Replace(validBlogJSON, `"isPublished": true`, `"imageUrl": "http://169.254.169.254/latest"`, 1)
				return multipartBlog(t, http.MethodPost, "/api/blogs/add", blog, nil)
			},
			message: "Invalid image URL",
		},
		{
			name: "missing blog field",
			req: func(t *testing.T) *http.Request {
				return multipartBlog(t, http.MethodPost, "/api/blogs/add", "", nil)
			},
			message: "Blog data is required",
		},
		{
			name: "broken blog json",
			req: func(t *testing.T) *http.Request {
				return multipartBlog(t, http.MethodPost, "/api/blogs/add", "{not json", nil)
			},
			message: "Invalid blog data",
		},
		{
			name: "invalid post is rejected before storing the image",
			req: func(t *testing.T) *http.Request {
				return multipartBlog(t, http.MethodPost, "/api/blogs/add", `{"title":"Go","description":"short","category":"Technology"}`, []byte("png"))
			},
			store: &mockImageStore{saveFn: func(ctx context.Context, name string, r io.Reader) (string, error) {
				panic("image must not be stored")
			}},
			message: "Title must be between 3 and 200 characters",
		},
		{
			name: "undecodable image",
			req: func(t *testing.T) *http.Request {
				return multipartBlog(t, http.MethodPost, "/api/blogs/add", validBlogJSON, []byte("not an image"))
			},
			store: &mockImageStore{saveFn: func(ctx context.Context, name string, r io.Reader) (string, error) {
				return "", media.ErrInvalidImage
			}},
			message: "Invalid image file",
		},
		{
			name: "image too large",
			req: func(t *testing.T) *http.Request {
				return multipartBlog(t, http.MethodPost, "/api/blogs/add", validBlogJSON, []byte("big"))
			},
			store: &mockImageStore{saveFn: func(ctx context.Context, name string, r io.Reader) (string, error) {
				return "", media.ErrImageTooLarge
			}},
			message: "Image must be 10MB or smaller",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t)
			if tt.store != nil {
				deps.ImageStore = tt.store
			}
			deps.BlogService = &mockBlogService{
				createFn: func(ctx context.Context, in model.PostUpdate) (*model.Post, error) {
					t.Error("service should not be called")
					return nil, nil
				},
			}

			w := httptest.NewRecorder()
			NewRouter(deps).ServeHTTP(w, tt.req(t))
			assertError(t, w, http.StatusBadRequest, tt.message)
		})
	}
}

func TestBlogHandler_AddBlog_ServiceValidation(t *testing.T) {
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		createFn: func(ctx context.Context, in model.PostUpdate) (*model.Post, error) {
			return nil, model.NewValidationError("Provide an image upload or generate an image")
		},
	}

	w := serve(t, NewRouter(deps), http.MethodPost, "/api/blogs/add", validBlogJSON, adminToken(t))
	assertError(t, w, http.StatusBadRequest, "Provide an image upload or generate an image")
}

func TestBlogHandler_UpdateBlog_KeepsImageWhenOmitted(t *testing.T) {
	var gotID string
	var got model.PostUpdate
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		updateFn: func(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
			gotID, got = id, in
			return &model.Post{ID: id, Title: in.Title, UpdatedAt: time.Now()}, nil
		},
	}

	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, multipartBlog(t, http.MethodPut, "/api/blogs/update/"+testID, validBlogJSON, nil))

	body := assertSuccess(t, w, http.StatusOK)
	if body["message"] != "Blog updated successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if gotID != testID {
		t.Errorf("id = %q", gotID)
	}
	if got.Image != nil {
		t.Errorf("image should be nil to keep the current one, got %q", *got.Image)
	}
}

func TestBlogHandler_UpdateBlog_OmittedFieldsStayNil(t *testing.T) {
	var got model.PostUpdate
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		updateFn: func(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
			got = in
			return &model.Post{ID: id}, nil
		},
	}

	body := `{"title":"Understanding Go Interfaces","description":"<p>Interfaces in Go are satisfied implicitly, which keeps packages decoupled.</p>","category":"Technology"}`
	w := serve(t, NewRouter(deps), http.MethodPut, "/api/blogs/update/"+testID, body, adminToken(t))
	assertSuccess(t, w, http.StatusOK)

	if got.Subtitle != nil || got.MetaDescription != nil || got.Tags != nil || got.IsPublished != nil {
		t.Errorf("omitted keys should be nil, got %+v", got)
	}

	body = `{"title":"Understanding Go Interfaces","subTitle":"","tags":[],"description":"<p>Interfaces in Go are satisfied implicitly, which keeps packages decoupled.</p>","category":"Technology"}`
	w = serve(t, NewRouter(deps), http.MethodPut, "/api/blogs/update/"+testID, body, adminToken(t))
	assertSuccess(t, w, http.StatusOK)

	if got.Subtitle == nil || *got.Subtitle != "" || got.Tags == nil || len(*got.Tags) != 0 {
		t.Errorf("explicit empty values should be passed through, got %+v", got)
	}
}

func TestBlogHandler_UpdateBlog_NotFound(t *testing.T) {
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		updateFn: func(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
			return nil, model.NewPostNotFoundError()
		},
	}

	w := serve(t, NewRouter(deps), http.MethodPut, "/api/blogs/update/"+testID, validBlogJSON, adminToken(t))
	assertError(t, w, http.StatusNotFound, "Blog not found")
}

func TestBlogHandler_DeleteAndToggle(t *testing.T) {
	var deleted, toggled string
	deps := newTestDeps(t)
	deps.BlogService = &mockBlogService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
		toggleFn: func(ctx context.Context, id string) (*model.Post, error) {
			toggled = id
			return &model.Post{ID: id, IsPublished: true}, nil
		},
	}
	router := NewRouter(deps)
	token := adminToken(t)

	body := assertSuccess(t, serve(t, router, http.MethodDelete, "/api/blogs/"+testID, "", token), http.StatusOK)
	if body["message"] != "Blog deleted successfully" || deleted != testID {
		t.Errorf("delete: message=%v id=%q", body["message"], deleted)
	}

	body = assertSuccess(t, serve(t, router, http.MethodPost, "/api/blogs/toggle-publish/"+testID, "", token), http.StatusOK)
	if body["message"] != "Blog publish status updated" || toggled != testID {
		t.Errorf("toggle: message=%v id=%q", body["message"], toggled)
	}
	if blog := body["blog"].(map[string]any); blog["isPublished"] != true {
		t.Errorf("isPublished = %v", blog["isPublished"])
	}
}

func TestBlogHandler_AddComment(t *testing.T) {
	var gotPost, gotName, gotContent string
	deps := newTestDeps(t)
	deps.CommentService = &mockCommentService{
		createFn: func(ctx context.Context, postID, name, content string) (*model.Comment, error) {
			gotPost, gotName, gotContent = postID, name, content
			return &model.Comment{ID: testID}, nil
		},
	}

	w := serve(t, NewRouter(deps), http.MethodPost, "/api/blogs/add-comment/"+testID, `{"name":"Alice","content":"Great post!"}`, "")
	body := assertSuccess(t, w, http.StatusCreated)
	if body["message"] != "Comment added successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if gotPost != testID || gotName != "Alice" || gotContent != "Great post!" {
		t.Errorf("service got %q %q %q", gotPost, gotName, gotContent)
	}
}

func TestBlogHandler_AddComment_Invalid(t *testing.T) {
	deps := newTestDeps(t)
	deps.CommentService = &mockCommentService{
		createFn: func(ctx context.Context, postID, name, content string) (*model.Comment, error) {
			return nil, model.NewValidationError("Comment must be between 5 and 1000 characters")
		},
	}
	router := NewRouter(deps)

	w := serve(t, router, http.MethodPost, "/api/blogs/add-comment/"+testID, `{"name":"Al","content":"Hi!"}`, "")
	assertError(t, w, http.StatusBadRequest, "Comment must be between 5 and 1000 characters")

	w = serve(t, router, http.MethodPost, "/api/blogs/add-comment/"+testID, `{"name":`, "")
	assertError(t, w, http.StatusBadRequest, "Invalid request body")
}

func TestBlogHandler_ListComments(t *testing.T) {
	deps := newTestDeps(t)
	deps.CommentService = &mockCommentService{
		listApprovedFn: func(ctx context.Context, postID string) ([]*model.Comment, error) {
			return []*model.Comment{{ID: "c1", PostID: postID, Name: "Bob", Content: "Nice one", IsApproved: true}}, nil
		},
	}

	body := assertSuccess(t, serve(t, NewRouter(deps), http.MethodGet, "/api/blogs/comments/"+testID, "", ""), http.StatusOK)
	comments := body["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("comments = %v", comments)
	}
	if c := comments[0].(map[string]any); c["blog"] != testID || c["name"] != "Bob" || c["isApproved"] != true {
		t.Errorf("comment = %v", c)
	}
}

func TestAIHandler(t *testing.T) {
	var gotTitle, gotCategory string
	deps := newTestDeps(t)
	deps.ImageGenerator = &mockImageGenerator{
		generateFn: func(ctx context.Context, title, category string) (string, error) {
			gotTitle, gotCategory = title, category
			return "/uploads/ai-go.jpg", nil
		},
	}
	router := NewRouter(deps)
	token := adminToken(t)

	body := assertSuccess(t, serve(t, router, http.MethodPost, "/api/blogs/generate-content", `{"prompt":"go"}`, token), http.StatusOK)
	if body["content"] != "## generated" || body["message"] != "Content generated successfully" {
		t.Errorf("content response = %v", body)
	}

	body = assertSuccess(t, serve(t, router, http.MethodPost, "/api/blogs/generate-seo", `{"title":"Go"}`, token), http.StatusOK)
	if body["metaDescription"] != "desc" {
		t.Errorf("seo response = %v", body)
	}

	body = assertSuccess(t, serve(t, router, http.MethodPost, "/api/blogs/generate-image", `{"title":"Go","category":"Technology"}`, token), http.StatusOK)
	if body["imageUrl"] != "/uploads/ai-go.jpg" || gotTitle != "Go" || gotCategory != "Technology" {
		t.Errorf("image response = %v (title=%q category=%q)", body, gotTitle, gotCategory)
	}
}

func TestAIHandler_ProviderFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.AIGenerator = &mockAIGenerator{
		contentFn: func(ctx context.Context, prompt string) (string, error) {
			return "", model.NewUpstreamError("AI provider is not configured")
		},
	}

	w := serve(t, NewRouter(deps), http.MethodPost, "/api/blogs/generate-content", `{"prompt":"go"}`, adminToken(t))
	assertError(t, w, http.StatusBadGateway, "AI provider is not configured")
}

func TestNewsletterHandler_Subscribe(t *testing.T) {
	existing := map[string]bool{}
	deps := newTestDeps(t)
	deps.NewsletterService = &mockNewsletterService{
		subscribeFn: func(ctx context.Context, email string) (*newsletter.SubscribeResult, error) {
			created := !existing[email]
			existing[email] = true
			return &newsletter.SubscribeResult{Email: email, Created: created}, nil
		},
	}
	router := NewRouter(deps)

	body := assertSuccess(t, serve(t, router, http.MethodPost, "/api/newsletter/subscribe", `{"email":"reader@example.com"}`, ""), http.StatusCreated)
	if body["message"] != "Subscribed successfully" {
		t.Errorf("first message = %v", body["message"])
	}

	body = assertSuccess(t, serve(t, router, http.MethodPost, "/api/newsletter/subscribe", `{"email":"reader@example.com"}`, ""), http.StatusCreated)
	if body["message"] != "You're already subscribed" {
		t.Errorf("second message = %v", body["message"])
	}
}
