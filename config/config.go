package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything the service reads from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Port     string `env:"PORT" envDefault:"5200"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Shared secret the gateway sends as a bearer token
	GatewayToken   string   `env:"GAME_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	RandomSeed       int64 `env:"RANDOM_SEED"` // 0 = seed from the clock
	CatalogCacheSize int   `env:"CATALOG_CACHE_SIZE" envDefault:"512"`
	SeedCatalog      bool  `env:"SEED_CATALOG" envDefault:"true"`

	// Workers
	DailyResetEnabled   bool          `env:"DAILY_RESET_ENABLED" envDefault:"true"`
	DailyResetAt        string        `env:"DAILY_RESET_AT" envDefault:"00:05"` // HH:MM UTC
	DailyResetParallel  int           `env:"DAILY_RESET_PARALLEL" envDefault:"8"`
	ArchiveEnabled      bool          `env:"ARCHIVE_ENABLED" envDefault:"false"`
	ArchiveAt           string        `env:"ARCHIVE_AT" envDefault:"01:00"`
	ProfileSyncURL      string        `env:"PROFILE_SYNC_URL"` // empty disables the profile sync worker
	ProfileSyncPath     string        `env:"PROFILE_SYNC_PATH" envDefault:"/api/v1/public/profiles"`
	ProfileSyncInterval time.Duration `env:"PROFILE_SYNC_INTERVAL" envDefault:"1m"`

	R2 R2Config
}

// R2Config points the object store at a Cloudflare R2 bucket.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// Enabled reports whether enough R2 settings are present to build a client.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// Load reads .env when present, then parses the environment.
// The bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	loadedDotEnv := godotenv.Load() == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, loadedDotEnv, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, loadedDotEnv, err
	}
	return &cfg, loadedDotEnv, nil
}

func (c *Config) validate() error {
	for i, origin := range c.AllowedOrigins {
		c.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	for name, at := range map[string]string{"DAILY_RESET_AT": c.DailyResetAt, "ARCHIVE_AT": c.ArchiveAt} {
		if _, _, err := ParseClock(at); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.DailyResetParallel <= 0 {
		c.DailyResetParallel = 1
	}
	return nil
}

// ParseClock turns "HH:MM" into hour and minute.
func ParseClock(s string) (uint, uint, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
