package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/writeflow/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// CreateIfAbsent は購読者を登録する。emailの一意制約に衝突した場合はfalseを返す。
func (r *PostgresSubscriberRepo) CreateIfAbsent(ctx context.Context, s *model.Subscriber) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, email, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO NOTHING`,
		s.ID, s.Email, s.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return affected(result)
}

// List は全購読者を登録日時の新しい順に返す。
func (r *PostgresSubscriberRepo) List(ctx context.Context) ([]*model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, created_at FROM subscribers ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subs := []*model.Subscriber{}
	for rows.Next() {
		s := &model.Subscriber{}
		if err := rows.Scan(&s.ID, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriber rows: %w", err)
	}
	return subs, nil
}

// ListEmails は全購読者のemailを登録順に返す。
func (r *PostgresSubscriberRepo) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email FROM subscribers ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriber emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriber emails: %w", err)
	}
	return emails, nil
}

// Delete は指定IDの購読者を削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresSubscriberRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return affected(result)
}
