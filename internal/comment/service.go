// Package comment は読者コメントの投稿と承認のドメインロジックを提供する。
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/repository"
	"github.com/hitoshi/writeflow/internal/validate"
)

// Service はコメント管理のサービス層。
type Service struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(comments repository.CommentRepository, posts repository.PostRepository) *Service {
	return &Service{
		comments: comments,
		posts:    posts,
		now:      time.Now,
	}
}

// ListApproved は記事の承認済みコメントを新しい順に返す。
func (s *Service) ListApproved(ctx context.Context, postID string) ([]*model.Comment, error) {
	comments, err := s.comments.ListApprovedByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved comments: %w", err)
	}
	return comments, nil
}

// ListAll は全コメントを記事タイトル付きで新しい順に返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.CommentWithPost, error) {
	comments, err := s.comments.ListAllWithPost(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Create は未承認のコメントを作成する。対象記事が存在しない場合は404。
func (s *Service) Create(ctx context.Context, postID, name, content string) (*model.Comment, error) {
	name, content, err := validate.Comment(name, content)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError()
	}

	c := &model.Comment{
		ID:        model.NewID(),
		PostID:    postID,
		Name:      name,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	slog.Info("comment received", slog.String("comment_id", c.ID), slog.String("post_id", postID))
	return c, nil
}

// Approve はコメントを承認する。承認済みのコメントに対しても成功する。
func (s *Service) Approve(ctx context.Context, id string) (*model.Comment, error) {
	c, err := s.comments.Approve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to approve comment: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError()
	}
	return c, nil
}

// Delete はコメントを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.comments.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if !ok {
		return model.NewCommentNotFoundError()
	}
	return nil
}
