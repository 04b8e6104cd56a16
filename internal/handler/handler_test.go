package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/writeflow/internal/ai"
	"github.com/hitoshi/writeflow/internal/auth"
	"github.com/hitoshi/writeflow/internal/middleware"
	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/newsletter"
	"github.com/hitoshi/writeflow/internal/notify"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn func(email, password string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Login(email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return nil, auth.ErrInvalidCredentials
}

// mockBlogService はBlogServiceInterfaceのモック実装。
type mockBlogService struct {
	listPublishedFn func(ctx context.Context) ([]*model.Post, error)
	listAllFn       func(ctx context.Context) ([]*model.Post, error)
	getFn           func(ctx context.Context, id string) (*model.Post, error)
	createFn        func(ctx context.Context, in model.PostUpdate) (*model.Post, error)
	updateFn        func(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error)
	deleteFn        func(ctx context.Context, id string) error
	toggleFn        func(ctx context.Context, id string) (*model.Post, error)
	notifyFn        func(ctx context.Context, id string) (notify.Report, error)
	dashboardFn     func(ctx context.Context) (*model.Dashboard, error)
}

func (m *mockBlogService) ListPublished(ctx context.Context) ([]*model.Post, error) {
	if m.listPublishedFn != nil {
		return m.listPublishedFn(ctx)
	}
	return nil, nil
}

func (m *mockBlogService) ListAll(ctx context.Context) ([]*model.Post, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockBlogService) GetAndCountView(ctx context.Context, id string) (*model.Post, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewPostNotFoundError()
}

func (m *mockBlogService) Create(ctx context.Context, in model.PostUpdate) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Post{ID: testID}, nil
}

func (m *mockBlogService) Update(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return &model.Post{ID: id}, nil
}

func (m *mockBlogService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockBlogService) TogglePublish(ctx context.Context, id string) (*model.Post, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, id)
	}
	return &model.Post{ID: id}, nil
}

func (m *mockBlogService) NotifySubscribers(ctx context.Context, id string) (notify.Report, error) {
	if m.notifyFn != nil {
		return m.notifyFn(ctx, id)
	}
	return notify.Report{}, nil
}

func (m *mockBlogService) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx)
	}
	return &model.Dashboard{}, nil
}

// mockCommentService はCommentServiceInterfaceのモック実装。
type mockCommentService struct {
	listApprovedFn func(ctx context.Context, postID string) ([]*model.Comment, error)
	listAllFn      func(ctx context.Context) ([]*model.CommentWithPost, error)
	createFn       func(ctx context.Context, postID, name, content string) (*model.Comment, error)
	approveFn      func(ctx context.Context, id string) (*model.Comment, error)
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockCommentService) ListApproved(ctx context.Context, postID string) ([]*model.Comment, error) {
	if m.listApprovedFn != nil {
		return m.listApprovedFn(ctx, postID)
	}
	return nil, nil
}

func (m *mockCommentService) ListAll(ctx context.Context) ([]*model.CommentWithPost, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockCommentService) Create(ctx context.Context, postID, name, content string) (*model.Comment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, postID, name, content)
	}
	return &model.Comment{ID: testID, PostID: postID}, nil
}

func (m *mockCommentService) Approve(ctx context.Context, id string) (*model.Comment, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, id)
	}
	return &model.Comment{ID: id, IsApproved: true}, nil
}

func (m *mockCommentService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockNewsletterService はNewsletterServiceInterfaceのモック実装。
type mockNewsletterService struct {
	subscribeFn func(ctx context.Context, email string) (*newsletter.SubscribeResult, error)
	listFn      func(ctx context.Context) ([]*model.Subscriber, error)
	deleteFn    func(ctx context.Context, id string) error
}

func (m *mockNewsletterService) Subscribe(ctx context.Context, email string) (*newsletter.SubscribeResult, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email)
	}
	return &newsletter.SubscribeResult{Email: email, Created: true}, nil
}

func (m *mockNewsletterService) List(ctx context.Context) ([]*model.Subscriber, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockNewsletterService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockAIGenerator はai.Generatorのモック実装。
type mockAIGenerator struct {
	contentFn func(ctx context.Context, prompt string) (string, error)
	seoFn     func(ctx context.Context, title, content string) (ai.SEOResult, error)
}

func (m *mockAIGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if m.contentFn != nil {
		return m.contentFn(ctx, prompt)
	}
	return "## generated", nil
}

func (m *mockAIGenerator) GenerateSEO(ctx context.Context, title, content string) (ai.SEOResult, error) {
	if m.seoFn != nil {
		return m.seoFn(ctx, title, content)
	}
	return ai.SEOResult{MetaDescription: "desc", Tags: []string{"go"}}, nil
}

// mockImageGenerator はImageGeneratorInterfaceのモック実装。
type mockImageGenerator struct {
	generateFn func(ctx context.Context, title, category string) (string, error)
}

func (m *mockImageGenerator) Generate(ctx context.Context, title, category string) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, title, category)
	}
	return "/uploads/generated.jpg", nil
}

// mockImageStore はmedia.Storeのモック実装。
type mockImageStore struct {
	saveFn func(ctx context.Context, name string, r io.Reader) (string, error)
}

func (m *mockImageStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, name, r)
	}
	return "/uploads/" + name, nil
}

// --- テストヘルパー ---

const (
	testID         = "64b7f0c2a1b2c3d4e5f60718"
	testAdminEmail = "admin@example.com"
)

var testIssuer = auth.NewTokenIssuer("handler-test-secret", time.Hour)

// adminToken はテスト用の有効な管理者トークンを返す。
func adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := testIssuer.Issue(testAdminEmail)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// newTestDeps は全サービスをモックにしたRouterDepsを返す。
// レート制限はテストごとに新しいRateLimiterを使う。
func newTestDeps(t *testing.T) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Grace: time.Minute})
	t.Cleanup(rl.Stop)

	return &RouterDeps{
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		TokenVerifier:     testIssuer,
		AuthService:       &mockAuthService{},
		BlogService:       &mockBlogService{},
		CommentService:    &mockCommentService{},
		NewsletterService: &mockNewsletterService{},
		AIGenerator:       &mockAIGenerator{},
		ImageGenerator:    &mockImageGenerator{},
		ImageStore:        &mockImageStore{},
		RSS:               RSSConfig{PublicSiteURL: "https://blog.example.com"},
	}
}

// serve はリクエストをルーターに流してレスポンスを返す。
// tokenが空でなければBearerトークンを付与する。
func serve(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeBody はレスポンスボディをmapにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// assertError はエラーレスポンスのステータスとメッセージを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantMessage string) map[string]any {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if wantMessage != "" && body["message"] != wantMessage {
		t.Errorf("message = %v, want %q", body["message"], wantMessage)
	}
	return body
}

// assertSuccess は成功レスポンスのステータスを検証し、ボディを返す。
func assertSuccess(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) map[string]any {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	return body
}
