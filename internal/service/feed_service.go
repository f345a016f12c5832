package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// DefaultRecommendations is the number of contracts returned when the caller
// does not ask for a specific count.
const DefaultRecommendations = 20

// maxRecommendations caps a single request.
const maxRecommendations = 100

// FeedService serves personalised contract recommendations.
type FeedService struct {
	feed     domain.FeedStore
	defaultN int
	logger   *slog.Logger
}

// NewFeedService creates a FeedService.
func NewFeedService(feed domain.FeedStore, logger *slog.Logger) *FeedService {
	return &FeedService{feed: feed, defaultN: DefaultRecommendations, logger: logger}
}

// WithDefaultN changes the count used when a request does not give one.
func (s *FeedService) WithDefaultN(n int) *FeedService {
	if n > 0 {
		s.defaultN = min(n, maxRecommendations)
	}
	return s
}

// Recommended returns up to n contracts for userID, skipping the ids the
// caller has already seen.
func (s *FeedService) Recommended(ctx context.Context, userID string, n int, excluded []string) ([]domain.Contract, error) {
	if userID == "" {
		return nil, fmt.Errorf("feed_service: recommended: %w", domain.ErrUnauthorized)
	}
	if n <= 0 {
		n = s.defaultN
	}
	if n > maxRecommendations {
		n = maxRecommendations
	}

	contracts, err := s.feed.Recommended(ctx, userID, n, dedupe(excluded))
	if err != nil {
		return nil, fmt.Errorf("feed_service: recommended: %w", err)
	}
	s.logger.DebugContext(ctx, "feed_service: recommended",
		slog.String("user_id", userID),
		slog.Int("requested", n),
		slog.Int("returned", len(contracts)),
		slog.Int("excluded", len(excluded)),
	)
	if contracts == nil {
		contracts = []domain.Contract{}
	}
	return contracts, nil
}

// dedupe drops empty and repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
