package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/writeflow/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListApprovedByPost は指定記事の承認済みコメントを新しい順に返す。
func (r *PostgresCommentRepo) ListApprovedByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, name, content, is_approved, created_at
		 FROM comments WHERE post_id = $1 AND is_approved = TRUE
		 ORDER BY created_at DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved comments: %w", err)
	}
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		c := &model.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.Name, &c.Content, &c.IsApproved, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comment rows: %w", err)
	}
	return comments, nil
}

// ListAllWithPost は全コメントを記事タイトル付きで新しい順に返す。
func (r *PostgresCommentRepo) ListAllWithPost(ctx context.Context) ([]*model.CommentWithPost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.name, c.content, c.is_approved, c.created_at, COALESCE(p.title, '')
		 FROM comments c LEFT JOIN posts p ON p.id = c.post_id
		 ORDER BY c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*model.CommentWithPost{}
	for rows.Next() {
		c := &model.CommentWithPost{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.Name, &c.Content, &c.IsApproved, &c.CreatedAt, &c.PostTitle); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comment rows: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, name, content, is_approved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.PostID, c.Name, c.Content, c.IsApproved, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// Approve はコメントを承認済みにし、更新後のコメントを返す。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) Approve(ctx context.Context, id string) (*model.Comment, error) {
	c := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE comments SET is_approved = TRUE WHERE id = $1
		 RETURNING id, post_id, name, content, is_approved, created_at`,
		id,
	).Scan(&c.ID, &c.PostID, &c.Name, &c.Content, &c.IsApproved, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to approve comment: %w", err)
	}
	return c, nil
}

// Delete は指定IDのコメントを削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	return affected(result)
}

// Count は全コメント数を返す。
func (r *PostgresCommentRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}
