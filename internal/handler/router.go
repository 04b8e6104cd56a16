package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/writeflow/internal/ai"
	"github.com/hitoshi/writeflow/internal/media"
	"github.com/hitoshi/writeflow/internal/middleware"
	"github.com/hitoshi/writeflow/internal/model"
)

// healthCheckTimeout はヘルスチェックでストアの疎通確認に使う時間の上限。
const healthCheckTimeout = 3 * time.Second

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusObserver    middleware.StatusObserver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier

	// 認証
	AuthService AuthServiceInterface

	// 記事・コメント・購読者
	BlogService       BlogServiceInterface
	CommentService    CommentServiceInterface
	NewsletterService NewsletterServiceInterface

	// AI・画像
	AIGenerator    ai.Generator
	ImageGenerator ImageGeneratorInterface
	ImageStore     media.Store
	MaxUploadBytes int64
	UploadDir      string

	// RSS
	RSS RSSConfig

	// 運用
	HealthCheck    func(ctx context.Context) error
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS → RateLimit(API, /api/*のみ)
//
// 管理者ルートはさらにAdminAuthを通し、AI生成ルートはAIポリシーでも制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	adminHandler := NewAdminHandler(deps.AuthService, deps.BlogService, deps.CommentService, deps.NewsletterService)
	blogHandler := NewBlogHandler(deps.BlogService, deps.CommentService, deps.ImageStore, deps.MaxUploadBytes)
	aiHandler := NewAIHandler(deps.AIGenerator, deps.ImageGenerator)
	newsletterHandler := NewNewsletterHandler(deps.NewsletterService)
	rssHandler := NewRSSHandler(deps.BlogService, deps.RSS)
	adminAuth := middleware.NewAdminAuthMiddleware(deps.TokenVerifier)
	limit := rateLimit(deps.RateLimiter)

	// --- 運用エンドポイント ---
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("API is working"))
	})
	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(deps.UploadDir)))))
	}

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(limit(middleware.APIPolicy))

		r.Route("/admin", func(r chi.Router) {
			r.With(limit(middleware.LoginPolicy)).Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(adminAuth)

				r.Get("/blogs", adminHandler.ListBlogs)
				r.Post("/blogs/{id}/notify", adminHandler.NotifySubscribers)
				r.Get("/comments", adminHandler.ListComments)
				r.Patch("/comments/approve-comment/{id}", adminHandler.ApproveComment)
				r.Delete("/comments/delete-comment/{id}", adminHandler.DeleteComment)
				r.Get("/dashboard", adminHandler.Dashboard)
				r.Get("/subscribers", adminHandler.ListSubscribers)
				r.Delete("/subscribers/{id}", adminHandler.DeleteSubscriber)
			})
		})

		r.Route("/blogs", func(r chi.Router) {
			// 公開ルート
			r.Get("/all", blogHandler.ListPublished)
			r.Get("/rss", rssHandler.Feed)
			r.Get("/comments/{id}", blogHandler.ListComments)
			r.Post("/add-comment/{id}", blogHandler.AddComment)
			r.Get("/{id}", blogHandler.GetBlog)

			// 管理者ルート
			r.Group(func(r chi.Router) {
				r.Use(adminAuth)

				r.Post("/add", blogHandler.AddBlog)
				r.Put("/update/{id}", blogHandler.UpdateBlog)
				r.Delete("/{id}", blogHandler.DeleteBlog)
				r.Post("/toggle-publish/{id}", blogHandler.TogglePublish)

				// AI生成（認証後にAIポリシーで制限）
				r.Group(func(r chi.Router) {
					r.Use(limit(middleware.AIPolicy))
					r.Post("/generate-content", aiHandler.GenerateContent)
					r.Post("/generate-seo", aiHandler.GenerateSEO)
					r.Post("/generate-image", aiHandler.GenerateImage)
				})
			})
		})

		r.Post("/newsletter/subscribe", newsletterHandler.Subscribe)
	})

	return r
}

// rateLimit はポリシーごとのミドルウェアを返す関数を作る。limiterがnilなら制限しない。
func rateLimit(rl *middleware.RateLimiter) func(middleware.Policy) func(http.Handler) http.Handler {
	return func(p middleware.Policy) func(http.Handler) http.Handler {
		if rl == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return rl.Middleware(p)
	}
}

// healthHandler はストアへの疎通を確認し、{status:"ok"}を返すハンドラーを作る。
func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteErrorResponse(w, &model.APIError{
					Status:   http.StatusServiceUnavailable,
					Code:     "UNAVAILABLE",
					Message:  "Service unavailable",
					Category: "system",
				})
				return
			}
		}
		writeSuccess(w, http.StatusOK, envelope{"status": "ok"})
	}
}

// noDirListing はディレクトリ一覧の表示を404にする。
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			notFoundHandler(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
