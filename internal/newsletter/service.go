// Package newsletter はニュースレター購読の登録と管理を提供する。
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/notify"
	"github.com/hitoshi/writeflow/internal/repository"
	"github.com/hitoshi/writeflow/internal/validate"
)

// WelcomeRecentLimit はウェルカムメールに載せる最近の記事数。
const WelcomeRecentLimit = 3

// Welcomer は新規購読者へウェルカムメールを送るインターフェース。
// notify.Notifierが実装する。
type Welcomer interface {
	Welcome(ctx context.Context, to string, recent []*model.Post) (notify.Report, error)
}

// SubscribeResult は購読登録の結果。
// 既に登録済みのemailの場合Createdはfalseになるが、エラーではない。
type SubscribeResult struct {
	Email   string
	Created bool
}

// Service はニュースレター購読のサービス層。
type Service struct {
	subscribers    repository.SubscriberRepository
	posts          repository.PostRepository
	welcomer       Welcomer
	welcomeTimeout time.Duration
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。welcomerはnilでもよい。
func NewService(
	subscribers repository.SubscriberRepository,
	posts repository.PostRepository,
	welcomer Welcomer,
) *Service {
	return &Service{
		subscribers:    subscribers,
		posts:          posts,
		welcomer:       welcomer,
		welcomeTimeout: notify.DefaultDispatchTimeout,
		now:            time.Now,
	}
}

// Subscribe はemailを購読者として登録する。
// 同じemailの二重登録は何もせず成功として扱う。
// 新規登録時はウェルカムメールをバックグラウンドで送信し、その結果を待たない。
func (s *Service) Subscribe(ctx context.Context, email string) (*SubscribeResult, error) {
	email, err := validate.Subscription(email)
	if err != nil {
		return nil, err
	}

	sub := &model.Subscriber{
		ID:        model.NewID(),
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	created, err := s.subscribers.CreateIfAbsent(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	if created {
		slog.Info("subscriber added", slog.String("subscriber_id", sub.ID))
		s.sendWelcome(ctx, email)
	}

	return &SubscribeResult{Email: email, Created: created}, nil
}

// sendWelcome はウェルカムメールの送信をバックグラウンドで開始する。
func (s *Service) sendWelcome(ctx context.Context, email string) {
	if s.welcomer == nil {
		return
	}
	notify.DispatchAsync(ctx, "welcome", s.welcomeTimeout, func(ctx context.Context) (notify.Report, error) {
		recent, err := s.posts.List(ctx, repository.PostFilter{PublishedOnly: true, Limit: WelcomeRecentLimit})
		if err != nil {
			return notify.Report{}, fmt.Errorf("failed to list recent posts: %w", err)
		}
		return s.welcomer.Welcome(ctx, email, recent)
	})
}

// List は全購読者を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Subscriber, error) {
	subs, err := s.subscribers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

// Delete は購読者を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.subscribers.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	if !ok {
		return model.NewSubscriberNotFoundError()
	}
	return nil
}
