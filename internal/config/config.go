// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevJWTSecret is used when TABSPLIT_JWT_SECRET is unset. It is only fit
// for local development.
const DevJWTSecret = "tabsplit-dev-secret"

// Config holds all server settings.
type Config struct {
	Port     int    `env:"TABSPLIT_PORT" envDefault:"8080"`
	DBPath   string `env:"TABSPLIT_DB_PATH" envDefault:"./data/tabsplit.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string        `env:"TABSPLIT_JWT_SECRET" envDefault:"tabsplit-dev-secret"`
	TokenTTL  time.Duration `env:"TABSPLIT_TOKEN_TTL" envDefault:"24h"`

	StoreRetries   uint64        `env:"TABSPLIT_STORE_RETRIES" envDefault:"3"`
	StoreRetryBase time.Duration `env:"TABSPLIT_STORE_RETRY_BASE" envDefault:"50ms"`

	MaxReceiptBytes int64         `env:"TABSPLIT_MAX_RECEIPT_BYTES" envDefault:"10485760"`
	RecognizeDelay  time.Duration `env:"TABSPLIT_RECOGNIZE_DELAY" envDefault:"0s"`
	// OCREndpoint selects the HTTP recognizer; empty uses the demo stub.
	OCREndpoint string `env:"TABSPLIT_OCR_ENDPOINT"`

	OTelEndpoint string `env:"TABSPLIT_OTEL_ENDPOINT"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// A missing file is fine.
		_ = godotenv.Load(f)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("TABSPLIT_PORT must be in 1..65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("TABSPLIT_DB_PATH must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("TABSPLIT_JWT_SECRET must not be empty"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TABSPLIT_TOKEN_TTL must be positive"))
	}
	if c.MaxReceiptBytes <= 0 {
		errs = append(errs, errors.New("TABSPLIT_MAX_RECEIPT_BYTES must be positive"))
	}
	if c.StoreRetryBase <= 0 {
		errs = append(errs, errors.New("TABSPLIT_STORE_RETRY_BASE must be positive"))
	}
	return errors.Join(errs...)
}

// UsesDevSecret reports whether tokens are signed with the development
// secret.
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
