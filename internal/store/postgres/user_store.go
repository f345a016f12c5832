package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Upsert inserts or updates a public profile.
func (s *UserStore) Upsert(ctx context.Context, u domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, username, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			username   = EXCLUDED.username,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()`,
		u.ID, u.Name, u.Username, u.AvatarURL, nullTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", u.ID, err)
	}
	return nil
}

// GetByID returns a public profile.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, username, avatar_url, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Username, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// UpsertPrivate inserts or updates contact details and email preferences.
func (s *UserStore) UpsertPrivate(ctx context.Context, p domain.PrivateUser) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO private_users (
			id, email, unsubscribed_from_resolution_emails,
			unsubscribed_from_comment_emails, unsubscribed_from_answer_emails, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			email                               = EXCLUDED.email,
			unsubscribed_from_resolution_emails = EXCLUDED.unsubscribed_from_resolution_emails,
			unsubscribed_from_comment_emails    = EXCLUDED.unsubscribed_from_comment_emails,
			unsubscribed_from_answer_emails     = EXCLUDED.unsubscribed_from_answer_emails,
			updated_at                          = NOW()`,
		p.ID, p.Email, p.UnsubscribedFromResolutionEmails,
		p.UnsubscribedFromCommentEmails, p.UnsubscribedFromAnswerEmails,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert private user %s: %w", p.ID, err)
	}
	return nil
}

// GetPrivate returns contact details and email preferences.
func (s *UserStore) GetPrivate(ctx context.Context, id string) (domain.PrivateUser, error) {
	var p domain.PrivateUser
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, unsubscribed_from_resolution_emails,
			unsubscribed_from_comment_emails, unsubscribed_from_answer_emails
		FROM private_users WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.UnsubscribedFromResolutionEmails,
		&p.UnsubscribedFromCommentEmails, &p.UnsubscribedFromAnswerEmails)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PrivateUser{}, domain.ErrNotFound
		}
		return domain.PrivateUser{}, fmt.Errorf("postgres: get private user %s: %w", id, err)
	}
	return p, nil
}
