package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alanyoungcy/marketresolver/internal/config"
	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Defaults()
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeSweeper struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeSweeper) ArchiveBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return f.n, f.err
}

func (f *fakeSweeper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

type fakeAlerter struct {
	events []string
}

func (f *fakeAlerter) Notify(_ context.Context, event, _, _ string) error {
	f.events = append(f.events, event)
	return nil
}

func TestArchiveOnceUsesRetentionCutoff(t *testing.T) {
	a := testApp(t)
	sweeper := &fakeSweeper{n: 3}
	alerts := &fakeAlerter{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a.archiveOnce(context.Background(), sweeper, alerts, now)

	require.Len(t, sweeper.cutoffs, 1)
	assert.Equal(t, now.Add(-24*time.Hour), sweeper.cutoffs[0])
	assert.Empty(t, alerts.events)
}

func TestArchiveOnceAlertsOnFailure(t *testing.T) {
	a := testApp(t)
	sweeper := &fakeSweeper{err: errors.New("bucket gone")}
	alerts := &fakeAlerter{}

	a.archiveOnce(context.Background(), sweeper, alerts, time.Now())
	assert.Equal(t, []string{notify.EventArchiveFailed}, alerts.events)

	// a cancelled sweep is shutdown, not a failure
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	alerts.events = nil
	a.archiveOnce(ctx, sweeper, alerts, time.Now())
	assert.Empty(t, alerts.events)
}

func TestRunArchiveSweepStopsOnCancel(t *testing.T) {
	a := testApp(t)
	a.cfg.Resolution.ArchiveInterval.Duration = 5 * time.Millisecond
	sweeper := &fakeSweeper{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.runArchiveSweep(ctx, sweeper, nil) }()

	require.Eventually(t, func() bool { return sweeper.calls() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("archive sweep did not stop")
	}
}

func TestEmailConfigOverridesDefaults(t *testing.T) {
	got := emailConfig(config.EmailConfig{}, domain.EnvDev)
	assert.Equal(t, "https://manifold.markets", got.SiteURL)
	assert.Equal(t, "0.01", got.CreatorFee.String())

	got = emailConfig(config.EmailConfig{
		SiteURL:     "https://dev.manifold.markets",
		FromAddress: "noreply@example.com",
		CreatorFee:  0.02,
	}, domain.EnvProd)
	assert.Equal(t, domain.EnvProd, got.Env)
	assert.Equal(t, "https://dev.manifold.markets", got.SiteURL)
	assert.Equal(t, "noreply@example.com", got.FromAddress)
	assert.Equal(t, "0.02", got.CreatorFee.String())
	assert.Equal(t, "https://discord.gg/eHQBNBqXuh", got.DiscordInvite)
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(fmt.Errorf("hub: %w", context.Canceled)))
	assert.NoError(t, ignoreCanceled(nil))
	assert.Error(t, ignoreCanceled(context.DeadlineExceeded))
}

func TestRunRejectsBadEnv(t *testing.T) {
	a := testApp(t)
	a.cfg.Manifold.Env = "staging"
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
	a.Close()
}
