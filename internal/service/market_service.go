package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/resolution"
)

// ContractSource fetches contracts from the upstream API.
type ContractSource interface {
	GetContract(ctx context.Context, id string) (domain.Contract, error)
}

// MarketService loads contracts through cache, store and API, and assembles
// the read model shown next to the resolve panel.
type MarketService struct {
	contracts  domain.ContractStore
	cache      domain.ContractCache
	api        ContractSource
	identities *IdentityResolver
	logger     *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
// api may be nil, in which case contracts missing locally are not found.
func NewMarketService(
	contracts domain.ContractStore,
	cache domain.ContractCache,
	api ContractSource,
	identities *IdentityResolver,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		contracts:  contracts,
		cache:      cache,
		api:        api,
		identities: identities,
		logger:     logger,
	}
}

// GetContract retrieves a contract by ID, checking the cache first, then the
// persistent store, then the upstream API. Whatever layer answers back-fills
// the layers above it.
func (s *MarketService) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	c, err := s.cache.Get(ctx, id)
	if err == nil {
		return c, nil
	}

	c, err = s.contracts.GetByID(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound) && s.api != nil:
		c, err = s.api.GetContract(ctx, id)
		if err != nil {
			return domain.Contract{}, fmt.Errorf("market_service: fetch %q: %w", id, err)
		}
		if upErr := s.contracts.Upsert(ctx, c); upErr != nil {
			s.logger.WarnContext(ctx, "market_service: store upsert failed",
				slog.String("contract_id", id),
				slog.String("error", upErr.Error()),
			)
		}
	default:
		return domain.Contract{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, c); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("contract_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return c, nil
}

// Refresh re-reads a contract from the upstream API and replaces the stored
// and cached copies.
func (s *MarketService) Refresh(ctx context.Context, id string) (domain.Contract, error) {
	if s.api == nil {
		return s.GetContract(ctx, id)
	}
	c, err := s.api.GetContract(ctx, id)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("market_service: refresh %q: %w", id, err)
	}
	if err := s.contracts.Upsert(ctx, c); err != nil {
		return domain.Contract{}, fmt.Errorf("market_service: refresh %q: %w", id, err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.String("contract_id", id),
			slog.String("error", err.Error()),
		)
	}
	return c, nil
}

// AnswerView is an answer with its probability and author resolved.
type AnswerView struct {
	domain.Answer
	Probability float64         `json:"probability"`
	Author      domain.Identity `json:"author"`
}

// MarketView is a contract as shown on its page.
type MarketView struct {
	Contract domain.Contract `json:"contract"`
	Creator  domain.Identity `json:"creator"`
	Answers  []AnswerView    `json:"answers"`
}

// View assembles a MarketView. Answers of independently resolved contracts
// are ordered for resolution; legacy answers keep their stored order.
func (s *MarketService) View(ctx context.Context, id string) (MarketView, error) {
	c, err := s.GetContract(ctx, id)
	if err != nil {
		return MarketView{}, err
	}

	answers := c.Answers
	if c.Mechanism == domain.MechanismCPMMMulti {
		answers = resolution.SortForResolution(c)
	}

	view := MarketView{
		Contract: c,
		Creator:  s.identities.Resolve(ctx, c.CreatorID),
		Answers:  make([]AnswerView, 0, len(answers)),
	}
	for _, a := range answers {
		author := domain.Identity{UserID: a.UserID, Name: a.Name, Username: a.Username, AvatarURL: a.AvatarURL}
		if author.Name == "" {
			author = s.identities.Resolve(ctx, a.UserID)
		}
		view.Answers = append(view.Answers, AnswerView{
			Answer:      a,
			Probability: c.AnswerProbability(a.ID),
			Author:      author,
		})
	}
	return view, nil
}
