package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketresolver/internal/config"
	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/email"
	"github.com/alanyoungcy/marketresolver/internal/notify"
	"github.com/alanyoungcy/marketresolver/internal/server"
	"github.com/alanyoungcy/marketresolver/internal/server/handler"
	"github.com/alanyoungcy/marketresolver/internal/server/ws"
	"github.com/alanyoungcy/marketresolver/internal/service"
)

// shutdownTimeout bounds how long in-flight HTTP requests get on shutdown.
const shutdownTimeout = 10 * time.Second

// services groups the service layer built on top of Dependencies.
type services struct {
	markets     *service.MarketService
	resolutions *service.ResolutionService
	home        *service.HomeService
	feed        *service.FeedService
	history     *service.HistoryService
	emails      *service.EmailService // nil when email.enabled is false
}

// ServerMode serves the HTTP API and WebSocket hub, and sweeps idle
// resolution sessions.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return ignoreCanceled(svcs.resolutions.Run(ctx))
	})
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// FullMode runs everything ServerMode does plus the periodic archive sweep
// that exports resolution records blob storage never received.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return ignoreCanceled(svcs.resolutions.Run(ctx))
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveSweep(ctx, deps.Archiver, deps.Notifier)
		})
	} else {
		a.logger.WarnContext(ctx, "full mode: s3 disabled, archive sweep not started")
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	return g.Wait()
}

// buildServices constructs the service layer.
func (a *App) buildServices(deps *Dependencies) *services {
	identities := service.NewIdentityResolver(deps.UserStore, deps.UserCache, deps.API, a.logger)
	markets := service.NewMarketService(deps.ContractStore, deps.ContractCache, deps.API, identities, a.logger)

	svcs := &services{
		markets: markets,
		resolutions: service.NewResolutionService(
			markets,
			deps.API,
			deps.ResolutionStore,
			deps.Archiver,
			deps.LockManager,
			deps.SignalBus,
			deps.Notifier,
			deps.ContractCache,
			service.ResolutionConfig{
				LockTTL:        a.cfg.Resolution.LockTTL.Duration,
				SessionIdleTTL: a.cfg.Resolution.SessionIdleTTL.Duration,
				SweepInterval:  a.cfg.Resolution.SweepInterval.Duration,
			},
			a.logger,
		),
		home: service.NewHomeService(
			deps.ContractStore,
			deps.CommentStore,
			deps.HomeCache,
			service.HomeConfig{
				Contracts:      a.cfg.Home.Contracts,
				HotContracts:   a.cfg.Home.HotContracts,
				RecentComments: a.cfg.Home.RecentComments,
				Revalidate:     a.cfg.Home.Revalidate.Duration,
			},
			a.logger,
		),
		feed:    service.NewFeedService(deps.FeedStore, a.logger).WithDefaultN(a.cfg.Feed.DefaultN),
		history: service.NewHistoryService(deps.ResolutionStore, deps.BlobReader, a.logger),
	}

	if a.cfg.Email.Enabled {
		svcs.emails = service.NewEmailService(
			email.NewComposer(emailConfig(a.cfg.Email, deps.Env)),
			email.NewOutbox(deps.SignalBus),
			deps.UserStore,
			identities,
			markets,
			a.logger,
		)
	}
	return svcs
}

// emailConfig layers the configured email fields over the platform defaults
// for env.
func emailConfig(cfg config.EmailConfig, env domain.Environment) email.Config {
	out := email.DefaultConfig(env)
	if cfg.SiteURL != "" {
		out.SiteURL = cfg.SiteURL
	}
	if cfg.FromAddress != "" {
		out.FromAddress = cfg.FromAddress
	}
	if cfg.DiscordInvite != "" {
		out.DiscordInvite = cfg.DiscordInvite
	}
	if cfg.CreatorFee > 0 {
		out.CreatorFee = decimal.NewFromFloat(cfg.CreatorFee)
	}
	return out
}

// startHTTPServer adds the WebSocket hub and the HTTP server to the given
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		Environment:    string(deps.Env),
		StartedAt:      a.startedAt,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return ignoreCanceled(hub.Run(ctx))
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Checks, a.logger),
		Status:      handler.NewStatusHandler(a.statusFunc(deps, svcs, hub)),
		Markets:     handler.NewMarketHandler(svcs.markets, svcs.home, svcs.feed, a.logger),
		Resolutions: handler.NewResolutionHandler(svcs.resolutions, a.logger),
		History:     handler.NewHistoryHandler(svcs.history, a.logger),
	}
	if svcs.emails != nil {
		handlers.Emails = handler.NewEmailHandler(svcs.emails, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// statusFunc reports the live service summary for /api/status.
func (a *App) statusFunc(deps *Dependencies, svcs *services, hub *ws.Hub) func() domain.ServiceStatus {
	return func() domain.ServiceStatus {
		return domain.ServiceStatus{
			Mode:           strings.ToLower(a.cfg.Mode),
			Environment:    string(deps.Env),
			UptimeSeconds:  int64(time.Since(a.startedAt).Seconds()),
			OpenSessions:   svcs.resolutions.OpenSessions(),
			WSClients:      hub.ClientCount(),
			ArchiveEnabled: deps.Archiver != nil,
		}
	}
}

// archiveSweeper is the part of domain.ResolutionArchiver the sweep needs.
type archiveSweeper interface {
	ArchiveBefore(ctx context.Context, before time.Time) (int64, error)
}

// alerter is the part of notify.Notifier the sweep needs.
type alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// runArchiveSweep exports unarchived resolution records older than the
// retention window, once per archive interval, until ctx is cancelled.
func (a *App) runArchiveSweep(ctx context.Context, archiver archiveSweeper, alerts alerter) error {
	ticker := time.NewTicker(a.cfg.Resolution.ArchiveInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.archiveOnce(ctx, archiver, alerts, now)
		}
	}
}

// archiveOnce runs a single sweep. Failures are logged and alerted, never
// returned, so one bad sweep does not stop the service.
func (a *App) archiveOnce(ctx context.Context, archiver archiveSweeper, alerts alerter, now time.Time) {
	cutoff := now.Add(-a.cfg.Resolution.ArchiveRetention.Duration)
	n, err := archiver.ArchiveBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.ErrorContext(ctx, "archive sweep failed",
			slog.Int64("archived", n),
			slog.String("error", err.Error()),
		)
		if alerts != nil {
			_ = alerts.Notify(ctx, notify.EventArchiveFailed, "Archive sweep failed", err.Error())
		}
		return
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "archive sweep complete",
			slog.Int64("archived", n),
			slog.Time("cutoff", cutoff),
		)
	}
}

// ignoreCanceled treats a cancelled context as a clean exit so it does not
// become the errgroup's error.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
