package service

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// UserSource fetches public profiles from the upstream API.
type UserSource interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// IdentityResolver maps user ids to display identities through cache, store
// and API. Lookups never fail: an unresolvable user is domain.UnknownIdentity.
type IdentityResolver struct {
	users  domain.UserStore
	cache  domain.UserCache
	api    UserSource
	logger *slog.Logger
}

// NewIdentityResolver creates an IdentityResolver. api may be nil.
func NewIdentityResolver(users domain.UserStore, cache domain.UserCache, api UserSource, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, cache: cache, api: api, logger: logger}
}

// Resolve returns the identity for userID.
func (r *IdentityResolver) Resolve(ctx context.Context, userID string) domain.Identity {
	if userID == "" {
		return domain.UnknownIdentity
	}
	u, ok := r.lookup(ctx, userID)
	if !ok {
		return domain.UnknownIdentity
	}
	return domain.Identity{UserID: u.ID, Name: u.Name, Username: u.Username, AvatarURL: u.AvatarURL}
}

// User returns the full public profile for userID.
func (r *IdentityResolver) User(ctx context.Context, userID string) (domain.User, error) {
	u, ok := r.lookup(ctx, userID)
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *IdentityResolver) lookup(ctx context.Context, userID string) (domain.User, bool) {
	if u, err := r.cache.Get(ctx, userID); err == nil {
		return u, true
	}

	u, err := r.users.GetByID(ctx, userID)
	if err != nil && r.api != nil {
		u, err = r.api.GetUser(ctx, userID)
		if err == nil {
			if upErr := r.users.Upsert(ctx, u); upErr != nil {
				r.logger.WarnContext(ctx, "identity: store upsert failed",
					slog.String("user_id", userID),
					slog.String("error", upErr.Error()),
				)
			}
		}
	}
	if err != nil {
		r.logger.DebugContext(ctx, "identity: user not resolved",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return domain.User{}, false
	}

	if cacheErr := r.cache.Set(ctx, u); cacheErr != nil {
		r.logger.WarnContext(ctx, "identity: cache set failed",
			slog.String("user_id", userID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return u, true
}
