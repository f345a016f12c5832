package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/marketresolver/internal/blob/s3"
	"github.com/alanyoungcy/marketresolver/internal/cache/redis"
	"github.com/alanyoungcy/marketresolver/internal/config"
	"github.com/alanyoungcy/marketresolver/internal/crypto"
	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/notify"
	"github.com/alanyoungcy/marketresolver/internal/platform/manifold"
	"github.com/alanyoungcy/marketresolver/internal/server/handler"
	"github.com/alanyoungcy/marketresolver/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Env domain.Environment

	// Stores
	ContractStore   domain.ContractStore
	UserStore       domain.UserStore
	CommentStore    domain.CommentStore
	FeedStore       domain.FeedStore
	ResolutionStore domain.ResolutionStore

	// Caches
	ContractCache domain.ContractCache
	UserCache     domain.UserCache
	HomeCache     domain.HomeCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Blob storage; nil when s3.enabled is false.
	BlobReader domain.BlobReader
	Archiver   domain.ResolutionArchiver

	// Upstream platform API
	API *manifold.Client

	// Notifications
	Notifier *notify.Notifier

	// Checks probe each backing service for /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	env, err := domain.ParseEnvironment(cfg.Manifold.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps := &Dependencies{
		Env:    env,
		Checks: make(map[string]handler.Check),
	}

	// --- Platform API ---
	apiKey, err := crypto.LoadSecret(crypto.SecretConfig{
		Plain:         cfg.Manifold.APIKey,
		EncryptedPath: cfg.Secrets.EncryptedAPIKeyPath,
		Password:      cfg.Secrets.KeyPassword,
	})
	if err != nil && !errors.Is(err, crypto.ErrNoSecretSource) {
		return nil, nil, fmt.Errorf("wire: api key: %w", err)
	}
	var apiOpts []manifold.Option
	if cfg.Manifold.BaseURL != "" {
		apiOpts = append(apiOpts, manifold.WithBaseURL(cfg.Manifold.BaseURL))
	}
	deps.API = manifold.NewClient(env, apiKey, apiOpts...)

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:             cfg.Supabase.DSN,
		Host:            cfg.Supabase.Host,
		Port:            cfg.Supabase.Port,
		Database:        cfg.Supabase.Database,
		User:            cfg.Supabase.User,
		Password:        cfg.Supabase.Password,
		SSLMode:         cfg.Supabase.SSLMode,
		MaxConns:        cfg.Supabase.PoolMaxConns,
		MinConns:        cfg.Supabase.PoolMinConns,
		PgBouncer:       cfg.Supabase.PgBouncer,
		ApplicationName: cfg.Supabase.ApplicationName,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.ContractStore = postgres.NewContractStore(pool)
	deps.UserStore = postgres.NewUserStore(pool)
	deps.CommentStore = postgres.NewCommentStore(pool)
	deps.FeedStore = postgres.NewFeedStore(pool)
	resolutionStore := postgres.NewResolutionStore(pool)
	deps.ResolutionStore = resolutionStore
	deps.Checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ContractCache = redis.NewContractCache(redisClient)
	deps.UserCache = redis.NewUserCache(redisClient)
	deps.HomeCache = redis.NewHomeCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Checks["redis"] = redisClient.Ping

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), resolutionStore, logger)
		deps.Checks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}
