package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/writeflow/internal/model"
	"github.com/lib/pq"
)

const postColumns = `id, title, subtitle, body, category, image, is_published, views,
	meta_description, tags, created_at, updated_at`

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var category string
	var tags []string
	err := s.Scan(&p.ID, &p.Title, &p.Subtitle, &p.Body, &category, &p.Image, &p.IsPublished, &p.Views,
		&p.MetaDescription, pq.Array(&tags), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Category = model.Category(category)
	p.Tags = tags
	return p, nil
}

// List は条件に合う記事を作成日時の新しい順に返す。
func (r *PostgresPostRepo) List(ctx context.Context, filter PostFilter) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	if filter.PublishedOnly {
		query += ` WHERE is_published = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	args := []any{}
	if filter.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	return posts, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return p, nil
}

// IncrementViews は閲覧数を1増やし、更新後の記事を返す。見つからない場合はnilを返す。
func (r *PostgresPostRepo) IncrementViews(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`UPDATE posts SET views = views + 1 WHERE id = $1 RETURNING `+postColumns, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment post views: %w", err)
	}
	return p, nil
}

// Create は記事を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, p *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, subtitle, body, category, image, is_published, views,
			meta_description, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Title, p.Subtitle, p.Body, string(p.Category), p.Image, p.IsPublished, p.Views,
		p.MetaDescription, pq.Array(nonNilTags(p.Tags)), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は記事の内容を置き換える。対象が存在しない場合はfalseを返す。
func (r *PostgresPostRepo) Update(ctx context.Context, p *model.Post) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = $2, subtitle = $3, body = $4, category = $5, image = $6,
			is_published = $7, meta_description = $8, tags = $9, updated_at = $10
		 WHERE id = $1`,
		p.ID, p.Title, p.Subtitle, p.Body, string(p.Category), p.Image,
		p.IsPublished, p.MetaDescription, pq.Array(nonNilTags(p.Tags)), p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update post: %w", err)
	}
	return affected(result)
}

// Delete は記事を削除する。commentsは外部キーのCASCADEで削除される。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return affected(result)
}

// TogglePublish は公開フラグを反転して保存し、更新後の記事を返す。見つからない場合はnilを返す。
func (r *PostgresPostRepo) TogglePublish(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`UPDATE posts SET is_published = NOT is_published, updated_at = now()
		 WHERE id = $1 RETURNING `+postColumns, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle post publish state: %w", err)
	}
	return p, nil
}

// Counts は全記事数と下書き数を返す。
func (r *PostgresPostRepo) Counts(ctx context.Context) (PostCounts, error) {
	var c PostCounts
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_published = FALSE) FROM posts`,
	).Scan(&c.Total, &c.Drafts)
	if err != nil {
		return PostCounts{}, fmt.Errorf("failed to count posts: %w", err)
	}
	return c, nil
}

// affected は更新・削除の影響行数が1以上かどうかを返す。
func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
