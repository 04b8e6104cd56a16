// Package repository はデータ永続化のインターフェースと実装を提供する。
// PostgreSQL実装とMongoDB実装は同じインターフェースを満たし、起動時の設定で選択する。
package repository

import (
	"context"

	"github.com/hitoshi/writeflow/internal/model"
)

// PostFilter は記事一覧の取得条件。
type PostFilter struct {
	PublishedOnly bool
	Limit         int // 0以下は無制限
}

// PostCounts はダッシュボード用の記事数集計。
type PostCounts struct {
	Total  int64
	Drafts int64
}

// PostRepository は記事データの永続化インターフェース。
type PostRepository interface {
	// List は条件に合う記事を作成日時の新しい順に返す。
	List(ctx context.Context, filter PostFilter) ([]*model.Post, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// IncrementViews は閲覧数を1増やし、更新後の記事を返す。
	// 加算は単一の更新文で行う。見つからない場合はnilを返す。
	IncrementViews(ctx context.Context, id string) (*model.Post, error)

	// Create は記事を作成する。
	Create(ctx context.Context, post *model.Post) error

	// Update は記事の内容を置き換える。閲覧数と作成日時は変更しない。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, post *model.Post) (bool, error)

	// Delete は記事と、その記事に付いた全コメントを削除する。
	// 対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// TogglePublish は公開フラグを反転して保存し、更新後の記事を返す。
	// 見つからない場合はnilを返す。
	TogglePublish(ctx context.Context, id string) (*model.Post, error)

	// Counts は全記事数と下書き数を返す。
	Counts(ctx context.Context) (PostCounts, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ListApprovedByPost は指定記事の承認済みコメントを新しい順に返す。
	ListApprovedByPost(ctx context.Context, postID string) ([]*model.Comment, error)

	// ListAllWithPost は全コメントを記事タイトル付きで新しい順に返す。
	ListAllWithPost(ctx context.Context) ([]*model.CommentWithPost, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// Approve はコメントを承認済みにし、更新後のコメントを返す。
	// 承認済みのコメントに対しても成功する。見つからない場合はnilを返す。
	Approve(ctx context.Context, id string) (*model.Comment, error)

	// Delete は指定IDのコメントを削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// Count は全コメント数を返す。
	Count(ctx context.Context) (int64, error)
}

// SubscriberRepository はニュースレター購読者の永続化インターフェース。
type SubscriberRepository interface {
	// CreateIfAbsent は購読者を登録する。同じemailが既に存在する場合は何もせずfalseを返す。
	// 一意性はストアの制約で保証する。
	CreateIfAbsent(ctx context.Context, sub *model.Subscriber) (bool, error)

	// List は全購読者を登録日時の新しい順に返す。
	List(ctx context.Context) ([]*model.Subscriber, error)

	// ListEmails は全購読者のemailを登録順に返す。
	ListEmails(ctx context.Context) ([]string, error)

	// Delete は指定IDの購読者を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// Store は3種類のリポジトリをまとめたもの。
type Store struct {
	Posts       PostRepository
	Comments    CommentRepository
	Subscribers SubscriberRepository
}
