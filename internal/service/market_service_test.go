package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

func TestMarketServiceGetContractLayers(t *testing.T) {
	logger := discardLogger()
	store := newMemContracts()
	cache := newMemContractCache()
	api := &fakeContractAPI{contracts: map[string]domain.Contract{"c1": multiContract("c1")}}
	ids := NewIdentityResolver(newMemUsers(), &memUserCache{}, nil, logger)
	svc := NewMarketService(store, cache, api, ids, logger)
	ctx := context.Background()

	c, err := svc.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Who wins?", c.Question)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 1, store.upserts)

	_, err = svc.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls, "second read is served by the cache")
	assert.Equal(t, 1, store.getCalls)

	_, err = svc.GetContract(ctx, "c2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketServiceRefreshInvalidatesCache(t *testing.T) {
	logger := discardLogger()
	stale := multiContract("c1")
	fresh := multiContract("c1")
	fresh.Question = "Who really wins?"

	store := newMemContracts(stale)
	cache := newMemContractCache()
	require.NoError(t, cache.Set(context.Background(), stale))
	api := &fakeContractAPI{contracts: map[string]domain.Contract{"c1": fresh}}
	svc := NewMarketService(store, cache, api, NewIdentityResolver(newMemUsers(), &memUserCache{}, nil, logger), logger)

	c, err := svc.Refresh(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Who really wins?", c.Question)
	assert.Contains(t, cache.invalidated, "c1")

	c, err = svc.GetContract(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Who really wins?", c.Question)
}

func TestMarketServiceView(t *testing.T) {
	logger := discardLogger()
	c := multiContract("c1")
	c.AddAnswersMode = domain.AddAnswersAnyone
	c.Answers[0].UserID = "u1"
	c.Answers[1].Name = "Inline Author"
	c.Answers[2].Resolution = "YES"
	c.Answers[2].SubsidyPool = 10

	users := newMemUsers()
	require.NoError(t, users.Upsert(context.Background(), domain.User{ID: "creator", Name: "Alice", Username: "alice"}))
	api := &fakeUserAPI{users: map[string]domain.User{"u1": {ID: "u1", Name: "Bob"}}}
	ids := NewIdentityResolver(users, &memUserCache{}, api, logger)
	svc := NewMarketService(newMemContracts(c), newMemContractCache(), nil, ids, logger)

	view, err := svc.View(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.Creator.Name)
	require.Len(t, view.Answers, 3)

	assert.Equal(t, []string{"a1", "a2", "a3"},
		[]string{view.Answers[0].ID, view.Answers[1].ID, view.Answers[2].ID},
		"open answers by descending prob, resolved last")
	assert.Equal(t, "Bob", view.Answers[0].Author.Name)
	assert.Equal(t, "Inline Author", view.Answers[1].Author.Name)
	assert.Equal(t, domain.UnknownIdentity, view.Answers[2].Author)
	assert.InDelta(t, 0.5, view.Answers[0].Probability, 1e-9)

	_, err = users.GetByID(context.Background(), "u1")
	assert.NoError(t, err, "API users are written back to the store")
}

func TestIdentityResolverEmptyID(t *testing.T) {
	ids := NewIdentityResolver(newMemUsers(), &memUserCache{}, nil, discardLogger())
	assert.Equal(t, domain.UnknownIdentity, ids.Resolve(context.Background(), ""))
	_, err := ids.User(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
