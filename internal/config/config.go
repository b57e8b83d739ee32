// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMongo    = "mongo"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN,required,notEmpty"`

	// Ledger store
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"users.db"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"imagebot"`

	// Sessions
	SessionStore string        `env:"SESSION_STORE" envDefault:"memory"`
	RedisURL     string        `env:"REDIS_URL"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// Quota
	FreeDailyLimit   int    `env:"FREE_DAILY_LIMIT" envDefault:"1"`
	QuotaTimezone    string `env:"QUOTA_TIMEZONE" envDefault:"UTC"`
	StrictPaidCommit bool   `env:"STRICT_PAID_COMMIT" envDefault:"true"`

	// Administration
	AdminIDs          string `env:"ADMIN_IDS"`
	AdminUsername     string `env:"ADMIN_USERNAME"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	JWTSecret         string `env:"JWT_SECRET"`

	// Generation
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"3m"`
	GenerationRate    float64       `env:"GENERATION_RATE" envDefault:"0.2"`
	GenerationBurst   int           `env:"GENERATION_BURST" envDefault:"2"`
	TopUpPackages     string        `env:"TOPUP_PACKAGES"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Location resolves QUOTA_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", c.QuotaTimezone, err)
	}
	return loc, nil
}

// AdminIDList parses the comma separated ADMIN_IDS.
func (c *Config) AdminIDList() ([]int64, error) {
	if strings.TrimSpace(c.AdminIDs) == "" {
		return nil, nil
	}
	var ids []int64
	for _, raw := range strings.Split(c.AdminIDs, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for STORE_DRIVER=sqlite")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.FreeDailyLimit < 0 {
		return fmt.Errorf("FREE_DAILY_LIMIT must not be negative")
	}
	if c.AdminUsername != "" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ADMIN_USERNAME is set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.AdminIDList(); err != nil {
		return err
	}
	return nil
}

// Load reads .env files if present, then parses and validates the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
