package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

func TestHomeServiceFallsBackPerSource(t *testing.T) {
	contracts := newMemContracts(multiContract("c1"))
	contracts.hot = []domain.Contract{multiContract("c1")}
	contracts.listErr = errors.New("db down")
	comments := &memComments{comments: []domain.Comment{{ID: "m1", Text: "hi"}}}
	cache := &memHomeCache{}

	svc := NewHomeService(contracts, comments, cache, DefaultHomeConfig(), discardLogger())
	feed, err := svc.Home(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, feed.Contracts)
	assert.Empty(t, feed.Contracts)
	assert.Len(t, feed.HotContracts, 1)
	assert.Len(t, feed.RecentComments, 1)
	assert.Equal(t, 60, feed.RevalidateAfter)
	assert.Equal(t, 60*time.Second, cache.ttl)
}

func TestHomeServiceServesCachedFeed(t *testing.T) {
	cached := domain.HomeFeed{RevalidateAfter: 60, Contracts: []domain.Contract{{ID: "cached"}}}
	cache := &memHomeCache{feed: &cached}
	comments := &memComments{err: errors.New("must not be called")}

	svc := NewHomeService(newMemContracts(), comments, cache, DefaultHomeConfig(), discardLogger())
	feed, err := svc.Home(context.Background())
	require.NoError(t, err)
	require.Len(t, feed.Contracts, 1)
	assert.Equal(t, "cached", feed.Contracts[0].ID)
}
