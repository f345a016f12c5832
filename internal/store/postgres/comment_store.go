package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// CommentStore implements domain.CommentStore using PostgreSQL.
type CommentStore struct {
	pool *pgxpool.Pool
}

// NewCommentStore creates a new CommentStore.
func NewCommentStore(pool *pgxpool.Pool) *CommentStore {
	return &CommentStore{pool: pool}
}

// Insert stores a comment. Re-inserting an existing id is a no-op.
func (s *CommentStore) Insert(ctx context.Context, c domain.Comment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO comments (id, contract_id, user_id, user_name, user_username, user_avatar_url, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		ON CONFLICT (id) DO NOTHING`,
		c.ID, c.ContractID, c.UserID, c.UserName, c.UserUsername, c.UserAvatarURL, c.Text, nullTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert comment %s: %w", c.ID, err)
	}
	return nil
}

// ListRecent returns the newest comments across all contracts.
func (s *CommentStore) ListRecent(ctx context.Context, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, contract_id, user_id, user_name, user_username, user_avatar_url, text, created_at
		FROM comments ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list comments: %w", err)
	}
	defer rows.Close()

	var list []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ContractID, &c.UserID, &c.UserName, &c.UserUsername,
			&c.UserAvatarURL, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan comment: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// nullTime maps the zero time to SQL NULL so column defaults apply.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
