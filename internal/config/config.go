// Package config maps process environment variables onto a typed Config.
//
// It is loaded once in main and handed to constructors; nothing in the
// module reads the environment after startup.
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Token store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all runtime configuration for the catalog gateway.
type Config struct {
	Env      string `env:"ENV"       envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8081"`

	// Twitch application credentials used for the client_credentials grant
	ClientID     string `env:"IGDB_CLIENT_ID,required,notEmpty"`
	ClientSecret string `env:"IGDB_CLIENT_SECRET,required,notEmpty"`

	TokenURL     string `env:"IGDB_TOKEN_URL" envDefault:"https://id.twitch.tv/oauth2/token"`
	APIBaseURL   string `env:"IGDB_API_URL"   envDefault:"https://api.igdb.com/v4"`
	ImageBaseURL string `env:"IGDB_IMAGE_URL" envDefault:"https://images.igdb.com/igdb/image/upload"`

	PageSize         int           `env:"PAGE_SIZE"         envDefault:"10"`
	ConfigureTimeout time.Duration `env:"CONFIGURE_TIMEOUT" envDefault:"30s"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT"   envDefault:"30s"`
	ResourceTimeout  time.Duration `env:"RESOURCE_TIMEOUT"  envDefault:"60s"`

	// IGDB allows 4 requests per second and 8 open requests
	RateLimitRPS    float64 `env:"RATE_LIMIT_RPS"    envDefault:"4"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST"  envDefault:"4"`
	MaxOpenRequests int64   `env:"MAX_OPEN_REQUESTS" envDefault:"8"`

	TokenStore   string `env:"TOKEN_STORE"    envDefault:"file"`
	TokenFile    string `env:"TOKEN_FILE"     envDefault:"./data/token.json"`
	TokenSealKey string `env:"TOKEN_SEAL_KEY"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`

	ImageCache bool `env:"IMAGE_CACHE" envDefault:"true"`

	DevStubAddr string `env:"DEVSTUB_ADDR" envDefault:":8090"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks rules that span more than one field.
func (c *Config) Validate() error {
	if c.PageSize < 1 {
		return fmt.Errorf("config: PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.ConfigureTimeout <= 0 {
		return fmt.Errorf("config: CONFIGURE_TIMEOUT must be positive")
	}

	switch c.TokenStore {
	case StoreMemory:
	case StoreFile:
		if c.TokenFile == "" {
			return fmt.Errorf("config: TOKEN_FILE is required for the file token store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for the redis token store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres token store")
		}
	default:
		return fmt.Errorf("config: unknown TOKEN_STORE %q", c.TokenStore)
	}

	if c.TokenSealKey != "" {
		if _, err := c.SealKey(); err != nil {
			return err
		}
	}
	return nil
}

// SealKey decodes TOKEN_SEAL_KEY. It returns nil when no key is configured.
func (c *Config) SealKey() (*[32]byte, error) {
	if c.TokenSealKey == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(c.TokenSealKey)
	if err != nil {
		return nil, fmt.Errorf("config: TOKEN_SEAL_KEY is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("config: TOKEN_SEAL_KEY must decode to 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// IsDev reports whether pretty console logging should be used.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}
