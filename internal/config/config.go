// Package config loads server settings from the environment.
package config

import (
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/abrezinsky/rafflebook/internal/errors"
)

// Config holds every setting the server reads at startup
type Config struct {
	Port          int    `env:"RAFFLE_PORT,default=8081"`
	DatabasePath  string `env:"RAFFLE_DB,default=raffle.db"`
	LogLevel      string `env:"RAFFLE_LOG_LEVEL,default=info"`
	LogFormat     string `env:"RAFFLE_LOG_FORMAT,default=text"`
	AdminPassword string `env:"RAFFLE_ADMIN_PASSWORD"`
	BaseURL       string `env:"RAFFLE_BASE_URL"`
	TrustHeaders  bool   `env:"RAFFLE_TRUST_HEADERS,default=false"`

	ClaimTimeout    time.Duration `env:"RAFFLE_CLAIM_TIMEOUT,default=5s"`
	ClaimMaxRetries int           `env:"RAFFLE_CLAIM_MAX_RETRIES,default=5"`
	ClaimRate       float64       `env:"RAFFLE_CLAIM_RATE,default=5"`
	ClaimBurst      int           `env:"RAFFLE_CLAIM_BURST,default=10"`

	ReceiptCheckURL string `env:"RAFFLE_RECEIPT_CHECK_URL"`
	Schedule        string `env:"RAFFLE_SCHEDULE,default=@every 1m"`
}

// Load reads envFile when it exists and decodes the environment into a Config.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(err, errors.ErrValidation, "failed to read "+envFile)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, errors.Wrap(err, errors.ErrValidation, "invalid configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envdecode cannot
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Validationf("port %d is out of range", c.Port)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return errors.Validationf("unknown log format %q", c.LogFormat)
	}
	if c.ClaimTimeout <= 0 {
		return errors.Validation("claim timeout must be positive")
	}
	if c.ClaimMaxRetries < 1 {
		return errors.Validation("claim max retries must be at least 1")
	}
	if c.ClaimRate <= 0 || c.ClaimBurst < 1 {
		return errors.Validation("claim rate and burst must be positive")
	}
	return nil
}
