// Package config defines the top-level configuration for the market resolver
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RESOLVER_* environment variables.
type Config struct {
	Manifold   ManifoldConfig   `toml:"manifold"`
	Secrets    SecretsConfig    `toml:"secrets"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Email      EmailConfig      `toml:"email"`
	Feed       FeedConfig       `toml:"feed"`
	Home       HomeConfig       `toml:"home"`
	Resolution ResolutionConfig `toml:"resolution"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ManifoldConfig selects the platform deployment and its API credentials.
type ManifoldConfig struct {
	// Env is "prod" or "dev". It picks the API root and the email links.
	Env     string `toml:"env"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"` // overrides the env-derived API root
}

// SecretsConfig points at secrets stored encrypted at rest.
type SecretsConfig struct {
	// EncryptedAPIKeyPath is a file written by crypto.SaveSecret holding the
	// platform API key. Used when manifold.api_key is empty.
	EncryptedAPIKeyPath string `toml:"encrypted_api_key_path"`
	KeyPassword         string `toml:"key_password"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN             string `toml:"dsn"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Database        string `toml:"database"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	PoolMaxConns    int    `toml:"pool_max_conns"`
	PoolMinConns    int    `toml:"pool_min_conns"`
	PgBouncer       bool   `toml:"pgbouncer"`
	ApplicationName string `toml:"application_name"`
	RunMigrations   bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EmailConfig holds the fields rendered into outgoing emails. Empty values
// fall back to the platform defaults for the configured env.
type EmailConfig struct {
	Enabled       bool    `toml:"enabled"`
	SiteURL       string  `toml:"site_url"`
	FromAddress   string  `toml:"from_address"`
	DiscordInvite string  `toml:"discord_invite"`
	CreatorFee    float64 `toml:"creator_fee"`
}

// FeedConfig holds recommended-feed parameters.
type FeedConfig struct {
	DefaultN int `toml:"default_n"`
}

// HomeConfig sizes the home page sections.
type HomeConfig struct {
	Contracts      int      `toml:"contracts"`
	HotContracts   int      `toml:"hot_contracts"`
	RecentComments int      `toml:"recent_comments"`
	Revalidate     duration `toml:"revalidate"`
}

// ResolutionConfig holds session and archive tunables.
type ResolutionConfig struct {
	LockTTL          duration `toml:"lock_ttl"`
	SessionIdleTTL   duration `toml:"session_idle_ttl"`
	SweepInterval    duration `toml:"sweep_interval"`
	ArchiveInterval  duration `toml:"archive_interval"`
	ArchiveRetention duration `toml:"archive_retention"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards every route except /api/health. Empty disables auth.
	APIKey     string   `toml:"api_key"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Manifold: ManifoldConfig{
			Env: "dev",
		},
		Supabase: SupabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "postgres",
			User:            "postgres",
			SSLMode:         "disable",
			PoolMaxConns:    10,
			PoolMinConns:    2,
			ApplicationName: "marketresolver",
			RunMigrations:   true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "resolver",
		},
		S3: S3Config{
			Enabled:        true,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "resolver-archive",
			ForcePathStyle: true,
		},
		Email: EmailConfig{
			Enabled:    true,
			CreatorFee: 0.01,
		},
		Feed: FeedConfig{
			DefaultN: 20,
		},
		Home: HomeConfig{
			Contracts:      100,
			HotContracts:   16,
			RecentComments: 10,
			Revalidate:     duration{60 * time.Second},
		},
		Resolution: ResolutionConfig{
			LockTTL:          duration{30 * time.Second},
			SessionIdleTTL:   duration{30 * time.Minute},
			SweepInterval:    duration{time.Minute},
			ArchiveInterval:  duration{time.Hour},
			ArchiveRetention: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"resolution.succeeded", "resolution.failed", "archive.failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validEnvs enumerates the accepted values for ManifoldConfig.Env.
var validEnvs = map[string]bool{
	"prod": true,
	"dev":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Manifold
	if !validEnvs[c.Manifold.Env] {
		errs = append(errs, fmt.Sprintf("manifold: unknown env %q (valid: prod, dev)", c.Manifold.Env))
	}
	if c.Manifold.BaseURL != "" {
		if u, err := url.Parse(c.Manifold.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("manifold: base_url %q is not an absolute URL", c.Manifold.BaseURL))
		}
	}
	// Submissions need a key; the read-only endpoints do not.
	if c.Manifold.APIKey == "" && c.Secrets.EncryptedAPIKeyPath == "" {
		errs = append(errs, "manifold: either api_key or secrets.encrypted_api_key_path must be set")
	}
	if c.Secrets.EncryptedAPIKeyPath != "" && c.Secrets.KeyPassword == "" {
		errs = append(errs, "secrets: key_password is required when encrypted_api_key_path is set")
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Email
	if c.Email.CreatorFee < 0 || c.Email.CreatorFee >= 1 {
		errs = append(errs, fmt.Sprintf("email: creator_fee must be in [0, 1), got %g", c.Email.CreatorFee))
	}

	// Feed
	if c.Feed.DefaultN < 1 || c.Feed.DefaultN > 100 {
		errs = append(errs, fmt.Sprintf("feed: default_n must be 1-100, got %d", c.Feed.DefaultN))
	}

	// Home
	if c.Home.Contracts < 1 || c.Home.HotContracts < 1 || c.Home.RecentComments < 0 {
		errs = append(errs, "home: contracts and hot_contracts must be >= 1, recent_comments >= 0")
	}
	if c.Home.Revalidate.Duration <= 0 {
		errs = append(errs, "home: revalidate must be > 0")
	}

	// Resolution
	if c.Resolution.LockTTL.Duration <= 0 {
		errs = append(errs, "resolution: lock_ttl must be > 0")
	}
	if c.Resolution.SessionIdleTTL.Duration <= 0 {
		errs = append(errs, "resolution: session_idle_ttl must be > 0")
	}
	if c.Resolution.SweepInterval.Duration <= 0 {
		errs = append(errs, "resolution: sweep_interval must be > 0")
	}
	if c.Mode == "full" && c.S3.Enabled {
		if c.Resolution.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "resolution: archive_interval must be > 0 in full mode")
		}
		if c.Resolution.ArchiveRetention.Duration < 0 {
			errs = append(errs, "resolution: archive_retention must be >= 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	} else if c.Mode == "server" {
		errs = append(errs, "server: must be enabled in server mode")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
