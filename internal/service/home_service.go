package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// HomeConfig sizes the sections of the home page.
type HomeConfig struct {
	Contracts      int
	HotContracts   int
	RecentComments int
	Revalidate     time.Duration
}

// DefaultHomeConfig returns the production defaults.
func DefaultHomeConfig() HomeConfig {
	return HomeConfig{
		Contracts:      100,
		HotContracts:   16,
		RecentComments: 10,
		Revalidate:     60 * time.Second,
	}
}

// HomeService assembles the landing page. Its sources are read concurrently
// and any source that fails contributes an empty section.
type HomeService struct {
	contracts domain.ContractStore
	comments  domain.CommentStore
	cache     domain.HomeCache
	cfg       HomeConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewHomeService creates a HomeService.
func NewHomeService(
	contracts domain.ContractStore,
	comments domain.CommentStore,
	cache domain.HomeCache,
	cfg HomeConfig,
	logger *slog.Logger,
) *HomeService {
	return &HomeService{
		contracts: contracts,
		comments:  comments,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Home returns the cached feed while it is fresh and rebuilds it otherwise.
func (s *HomeService) Home(ctx context.Context) (domain.HomeFeed, error) {
	if feed, err := s.cache.Get(ctx); err == nil {
		return feed, nil
	}

	feed := s.build(ctx)
	if err := s.cache.Set(ctx, feed, s.cfg.Revalidate); err != nil {
		s.logger.WarnContext(ctx, "home_service: cache set failed",
			slog.String("error", err.Error()),
		)
	}
	return feed, nil
}

func (s *HomeService) build(ctx context.Context) domain.HomeFeed {
	var (
		contracts []domain.Contract
		hot       []domain.Contract
		comments  []domain.Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contracts = fallback(gctx, s.logger, "contracts", func(ctx context.Context) ([]domain.Contract, error) {
			return s.contracts.ListAll(ctx, domain.ListOpts{Limit: s.cfg.Contracts})
		})
		return nil
	})
	g.Go(func() error {
		hot = fallback(gctx, s.logger, "hot_contracts", func(ctx context.Context) ([]domain.Contract, error) {
			return s.contracts.ListHot(ctx, s.cfg.HotContracts)
		})
		return nil
	})
	g.Go(func() error {
		comments = fallback(gctx, s.logger, "recent_comments", func(ctx context.Context) ([]domain.Comment, error) {
			return s.comments.ListRecent(ctx, s.cfg.RecentComments)
		})
		return nil
	})
	_ = g.Wait()

	return domain.HomeFeed{
		Contracts:       contracts,
		HotContracts:    hot,
		RecentComments:  comments,
		GeneratedAt:     s.now().UTC(),
		RevalidateAfter: int(s.cfg.Revalidate / time.Second),
	}
}

// fallback runs fn and turns a failure into an empty, non-nil slice.
func fallback[T any](ctx context.Context, logger *slog.Logger, source string, fn func(context.Context) ([]T, error)) []T {
	out, err := fn(ctx)
	if err != nil {
		logger.WarnContext(ctx, "home_service: source failed",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}
