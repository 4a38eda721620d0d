package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"engagement-rewards-system/utils"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL"`
	Port           string   `env:"PORT" envDefault:"5200"`
	GatewayToken   string   `env:"GATEWAY_SERVICE_TOKEN"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SocialDataAPIKey  string        `env:"SOCIALDATA_API_KEY"`
	SocialDataBaseURL string        `env:"SOCIALDATA_BASE_URL" envDefault:"https://api.socialdata.tools"`
	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT" envDefault:"10s"`

	MaxReferralDepth int    `env:"MAX_REFERRAL_DEPTH" envDefault:"5"`
	RanksFile        string `env:"RANKS_FILE"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SweepBatchSize int           `env:"SWEEP_BATCH_SIZE" envDefault:"50"`
	AuditInterval  time.Duration `env:"LEDGER_AUDIT_INTERVAL" envDefault:"1h"`
	ExportInterval time.Duration `env:"LEDGER_EXPORT_INTERVAL" envDefault:"24h"`

	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket            string `env:"R2_BUCKET_NAME"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxReferralDepth < 0 {
		return nil, fmt.Errorf("MAX_REFERRAL_DEPTH must not be negative, got %d", cfg.MaxReferralDepth)
	}
	if cfg.OracleTimeout <= 0 {
		return nil, errors.New("ORACLE_TIMEOUT must be positive")
	}
	return &cfg, nil
}

// RequireDatabase fails when DATABASE_URL is missing.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	return nil
}

// RequireServe fails when a setting needed to serve HTTP is missing.
func (c *Config) RequireServe() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if c.GatewayToken == "" {
		return errors.New("GATEWAY_SERVICE_TOKEN environment variable not set")
	}
	if c.SocialDataAPIKey == "" {
		return errors.New("SOCIALDATA_API_KEY environment variable not set")
	}
	if c.SweepInterval <= 0 || c.AuditInterval <= 0 || c.ExportInterval <= 0 {
		return errors.New("SWEEP_INTERVAL, LEDGER_AUDIT_INTERVAL and LEDGER_EXPORT_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) R2() utils.R2Config {
	return utils.R2Config{
		AccountID:       c.CloudflareAccountID,
		AccessKeyID:     c.R2AccessKeyID,
		AccessKeySecret: c.R2AccessKeySecret,
		Bucket:          c.R2Bucket,
	}
}
