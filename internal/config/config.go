// Package config loads process configuration from the environment.
//
// An optional .env file in the working directory is loaded first; values
// already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Providers.
const (
	ProviderSoftware = "software"
	ProviderVault    = "vault"
)

// Config is the configuration shared by the CLI and the HTTP example.
type Config struct {
	LogLevel  string `env:"JOSE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"JOSE_LOG_FORMAT" envDefault:"text"`

	// Provider selects the crypto provider: "software" or "vault".
	Provider string `env:"JOSE_PROVIDER" envDefault:"software"`

	VaultAddress string `env:"VAULT_ADDR"`
	VaultToken   string `env:"VAULT_TOKEN"`
	VaultMount   string `env:"JOSE_VAULT_MOUNT" envDefault:"transit"`

	// JWKSRefresh is how often cached JWK sets are refetched, and JWKSTTL
	// how long a fetched set is served from the cache.
	JWKSRefresh time.Duration `env:"JOSE_JWKS_REFRESH" envDefault:"15m"`
	JWKSTTL     time.Duration `env:"JOSE_JWKS_TTL" envDefault:"1h"`

	// RedisAddress enables the redis JWK set store when set.
	RedisAddress string `env:"JOSE_REDIS_ADDR"`

	// CriticalHeaders lists the "crit" extension parameters the codec
	// understands.
	CriticalHeaders []string `env:"JOSE_CRITICAL_HEADERS" envSeparator:","`
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSoftware:
	case ProviderVault:
		if c.VaultAddress == "" {
			return fmt.Errorf("config: VAULT_ADDR is required for the %q provider", ProviderVault)
		}
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}

	if c.JWKSRefresh <= 0 || c.JWKSTTL <= 0 {
		return fmt.Errorf("config: JWK set refresh interval and TTL must be positive")
	}

	return nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is like Load but panics on error. It is meant for program startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
