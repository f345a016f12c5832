package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ContractStore persists contracts together with their answers.
type ContractStore interface {
	Upsert(ctx context.Context, c Contract) error
	GetByID(ctx context.Context, id string) (Contract, error)
	GetBySlug(ctx context.Context, slug string) (Contract, error)
	ListAll(ctx context.Context, opts ListOpts) ([]Contract, error)
	ListHot(ctx context.Context, limit int) ([]Contract, error)
}

// UserStore persists public profiles and private settings.
type UserStore interface {
	Upsert(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	UpsertPrivate(ctx context.Context, p PrivateUser) error
	GetPrivate(ctx context.Context, id string) (PrivateUser, error)
}

// CommentStore reads contract comments.
type CommentStore interface {
	Insert(ctx context.Context, c Comment) error
	ListRecent(ctx context.Context, limit int) ([]Comment, error)
}

// FeedStore returns personalised contract recommendations.
type FeedStore interface {
	Recommended(ctx context.Context, userID string, n int, excludedContractIDs []string) ([]Contract, error)
}

// ResolutionStore persists the append-only resolution audit log.
type ResolutionStore interface {
	Insert(ctx context.Context, rec ResolutionRecord) (int64, error)
	SetArchivePath(ctx context.Context, id int64, path string) error
	ListByContract(ctx context.Context, contractID string, opts ListOpts) ([]ResolutionRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]ResolutionRecord, error)
}
