package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RESOLVER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RESOLVER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Manifold ──
	setStr(&cfg.Manifold.Env, "RESOLVER_MANIFOLD_ENV")
	setStr(&cfg.Manifold.APIKey, "RESOLVER_MANIFOLD_API_KEY")
	setStr(&cfg.Manifold.BaseURL, "RESOLVER_MANIFOLD_BASE_URL")

	// ── Secrets ──
	setStr(&cfg.Secrets.EncryptedAPIKeyPath, "RESOLVER_SECRETS_ENCRYPTED_API_KEY_PATH")
	setStr(&cfg.Secrets.KeyPassword, "RESOLVER_SECRETS_KEY_PASSWORD")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "RESOLVER_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "RESOLVER_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "RESOLVER_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "RESOLVER_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "RESOLVER_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "RESOLVER_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "RESOLVER_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "RESOLVER_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "RESOLVER_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "RESOLVER_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.PgBouncer, "RESOLVER_SUPABASE_PGBOUNCER")
	setStr(&cfg.Supabase.ApplicationName, "RESOLVER_SUPABASE_APPLICATION_NAME")
	setBool(&cfg.Supabase.RunMigrations, "RESOLVER_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RESOLVER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RESOLVER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RESOLVER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RESOLVER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RESOLVER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RESOLVER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "RESOLVER_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RESOLVER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RESOLVER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RESOLVER_S3_REGION")
	setStr(&cfg.S3.Bucket, "RESOLVER_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "RESOLVER_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "RESOLVER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RESOLVER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RESOLVER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RESOLVER_S3_FORCE_PATH_STYLE")

	// ── Email ──
	setBool(&cfg.Email.Enabled, "RESOLVER_EMAIL_ENABLED")
	setStr(&cfg.Email.SiteURL, "RESOLVER_EMAIL_SITE_URL")
	setStr(&cfg.Email.FromAddress, "RESOLVER_EMAIL_FROM_ADDRESS")
	setStr(&cfg.Email.DiscordInvite, "RESOLVER_EMAIL_DISCORD_INVITE")
	setFloat64(&cfg.Email.CreatorFee, "RESOLVER_EMAIL_CREATOR_FEE")

	// ── Feed / Home ──
	setInt(&cfg.Feed.DefaultN, "RESOLVER_FEED_DEFAULT_N")
	setInt(&cfg.Home.Contracts, "RESOLVER_HOME_CONTRACTS")
	setInt(&cfg.Home.HotContracts, "RESOLVER_HOME_HOT_CONTRACTS")
	setInt(&cfg.Home.RecentComments, "RESOLVER_HOME_RECENT_COMMENTS")
	setDuration(&cfg.Home.Revalidate, "RESOLVER_HOME_REVALIDATE")

	// ── Resolution ──
	setDuration(&cfg.Resolution.LockTTL, "RESOLVER_RESOLUTION_LOCK_TTL")
	setDuration(&cfg.Resolution.SessionIdleTTL, "RESOLVER_RESOLUTION_SESSION_IDLE_TTL")
	setDuration(&cfg.Resolution.SweepInterval, "RESOLVER_RESOLUTION_SWEEP_INTERVAL")
	setDuration(&cfg.Resolution.ArchiveInterval, "RESOLVER_RESOLUTION_ARCHIVE_INTERVAL")
	setDuration(&cfg.Resolution.ArchiveRetention, "RESOLVER_RESOLUTION_ARCHIVE_RETENTION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RESOLVER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RESOLVER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "RESOLVER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "RESOLVER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "RESOLVER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "RESOLVER_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RESOLVER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RESOLVER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RESOLVER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RESOLVER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RESOLVER_MODE")
	setStr(&cfg.LogLevel, "RESOLVER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
