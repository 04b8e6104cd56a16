// Package blog は記事の作成・公開・閲覧とダッシュボード集計のドメインロジックを提供する。
package blog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/notify"
	"github.com/hitoshi/writeflow/internal/repository"
	"github.com/hitoshi/writeflow/internal/validate"
)

// DashboardRecentLimit はダッシュボードに表示する最近の記事数。
const DashboardRecentLimit = 5

// BodySanitizer は記事本文のHTMLを無害化するインターフェース。
// security.ContentSanitizerが実装する。
type BodySanitizer interface {
	Sanitize(rawHTML string) string
}

// PostNotifier は新着記事を購読者に通知するインターフェース。
// notify.Notifierが実装する。
type PostNotifier interface {
	NotifyNewPost(ctx context.Context, post *model.Post) (notify.Report, error)
}

// ViewRecorder は記事閲覧を記録するインターフェース。
type ViewRecorder interface {
	RecordPostView()
}

// Config は記事サービスの設定。
type Config struct {
	NotifyOnPublish bool          // 公開に切り替えた時点で購読者へ通知する
	NotifyTimeout   time.Duration // 公開通知のバックグラウンド処理の上限時間
}

// Service は記事管理のサービス層。
type Service struct {
	posts     repository.PostRepository
	comments  repository.CommentRepository
	sanitizer BodySanitizer
	notifier  PostNotifier
	views     ViewRecorder
	config    Config
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとviewsはnilでもよい。
func NewService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	sanitizer BodySanitizer,
	notifier PostNotifier,
	views ViewRecorder,
	config Config,
) *Service {
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = notify.DefaultDispatchTimeout
	}
	return &Service{
		posts:     posts,
		comments:  comments,
		sanitizer: sanitizer,
		notifier:  notifier,
		views:     views,
		config:    config,
		now:       time.Now,
	}
}

// ListPublished は公開済み記事を新しい順に返す。
func (s *Service) ListPublished(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.posts.List(ctx, repository.PostFilter{PublishedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}
	return posts, nil
}

// ListAll は下書きを含む全記事を新しい順に返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.posts.List(ctx, repository.PostFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// GetAndCountView は記事を取得し、閲覧数を1増やす。
// 加算と取得はストアの単一操作で行う。
func (s *Service) GetAndCountView(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.IncrementViews(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError()
	}
	if s.views != nil {
		s.views.RecordPostView()
	}
	return post, nil
}

// Create は記事を作成する。カバー画像は必須。
// IsPublishedが未指定の場合は下書きとして作成する。
func (s *Service) Create(ctx context.Context, in model.PostUpdate) (*model.Post, error) {
	if err := validate.Post(in.Title, in.Body, in.Category); err != nil {
		return nil, err
	}
	if in.Image == nil || strings.TrimSpace(*in.Image) == "" {
		return nil, model.NewValidationError("Provide an image upload or generate an image")
	}

	now := s.now().UTC()
	post := &model.Post{
		ID:        model.NewID(),
		Image:     strings.TrimSpace(*in.Image),
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apply(post, in); err != nil {
		return nil, err
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.Bool("published", post.IsPublished),
	)
	return post, nil
}

// Update は記事を更新する。
// Imageがnilの場合は既存のカバー画像を維持する。IsPublishedがnilの場合は公開状態を維持する。
func (s *Service) Update(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
	if err := validate.Post(in.Title, in.Body, in.Category); err != nil {
		return nil, err
	}

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError()
	}

	if err := s.apply(post, in); err != nil {
		return nil, err
	}
	if in.Image != nil && strings.TrimSpace(*in.Image) != "" {
		post.Image = strings.TrimSpace(*in.Image)
	}
	post.UpdatedAt = s.now().UTC()

	ok, err := s.posts.Update(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if !ok {
		return nil, model.NewPostNotFoundError()
	}
	return post, nil
}

// apply は入力値を正規化して記事に反映し、反映後の記事を検証する。
// 本文はサニタイズ後の値で長さを見るため、タグだけの本文は保存されない。
func (s *Service) apply(post *model.Post, in model.PostUpdate) error {
	post.Title = strings.TrimSpace(in.Title)
	post.Body = in.Body
	if s.sanitizer != nil {
		post.Body = s.sanitizer.Sanitize(in.Body)
	}
	post.Category = in.Category
	if in.Subtitle != nil {
		post.Subtitle = validate.Sanitize(*in.Subtitle)
	}
	if in.MetaDescription != nil {
		post.MetaDescription = validate.Sanitize(*in.MetaDescription)
	}
	if in.Tags != nil {
		post.Tags = NormalizeTags(*in.Tags)
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}
	return validate.Post(post.Title, post.Body, post.Category)
}

// Delete は記事とそのコメントを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.posts.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if !ok {
		return model.NewPostNotFoundError()
	}
	slog.Info("post deleted", slog.String("post_id", id))
	return nil
}

// TogglePublish は公開状態を反転して保存する。
// NotifyOnPublishが有効で記事が公開になった場合、購読者への通知をバックグラウンドで開始する。
// 通知の成否はレスポンスに影響しない。
func (s *Service) TogglePublish(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.TogglePublish(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle publish state: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError()
	}

	if post.IsPublished && s.config.NotifyOnPublish && s.notifier != nil {
		published := *post
		notify.DispatchAsync(ctx, "publish", s.config.NotifyTimeout, func(ctx context.Context) (notify.Report, error) {
			return s.notifier.NotifyNewPost(ctx, &published)
		})
	}
	return post, nil
}

// NotifySubscribers は公開済み記事の新着通知を全購読者へ同期的に送信する。
// 管理画面とCLIからの手動配信に使う。
func (s *Service) NotifySubscribers(ctx context.Context, id string) (notify.Report, error) {
	if s.notifier == nil {
		return notify.Report{}, model.NewUpstreamError("Mail notifications are not available")
	}

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return notify.Report{}, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return notify.Report{}, model.NewPostNotFoundError()
	}
	if !post.IsPublished {
		return notify.Report{}, model.NewValidationError("Only published blogs can be sent to subscribers")
	}

	report, err := s.notifier.NotifyNewPost(ctx, post)
	if err != nil {
		return report, fmt.Errorf("failed to notify subscribers: %w", err)
	}
	return report, nil
}

// Dashboard は記事数・コメント数・下書き数と最近の記事を集計する。
// 毎回ストアから計算し、キャッシュしない。
func (s *Service) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	counts, err := s.posts.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	comments, err := s.comments.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	recent, err := s.posts.List(ctx, repository.PostFilter{Limit: DashboardRecentLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts: %w", err)
	}

	return &model.Dashboard{
		Blogs:       counts.Total,
		Comments:    comments,
		Drafts:      counts.Drafts,
		RecentBlogs: recent,
	}, nil
}

// NormalizeTags はタグの前後空白と山括弧を除去し、空要素と重複を取り除く。
// 順序は最初の出現順を保つ。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = validate.Sanitize(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
