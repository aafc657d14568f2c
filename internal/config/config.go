// Package config loads the application configuration from environment
// variables. envconfig maps variables onto struct fields.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"voxnote.app/whatsapp-bot/internal/common"
)

// Config holds ALL application settings.
type Config struct {
	// --- WhatsApp ---
	// Credentials for the Cloud API client that the webhook/transport layer
	// uses. The ledger core never touches these directly.
	WhatsAppAccessToken   string `envconfig:"WHATSAPP_ACCESS_TOKEN" required:"true"`
	WhatsAppPhoneNumberID string `envconfig:"WHATSAPP_PHONE_NUMBER_ID" required:"true"`
	// Outbound text-message size limit; replies are split to fit.
	MessageMaxLength int `envconfig:"MESSAGE_MAX_LENGTH" default:"4096"`

	// --- Database ---
	// Inside Docker "localhost" is almost always wrong; default to the
	// compose service name and override DB_HOST=localhost for local runs.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"voxnote"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Bound on any single ledger operation; on expiry the operation fails
	// with a retryable error instead of hanging the webhook request.
	DBOpTimeout time.Duration `envconfig:"DB_OP_TIMEOUT" default:"5s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`
	// TestMode selects the in-memory ledger store and enables the canned
	// magic-code responses. Chosen once at startup, never per call.
	TestMode bool `envconfig:"APP_TEST_MODE" default:"false"`

	// --- Operator ---
	// Argon2id hash for the support-dashboard password; generate with
	// scripts/generate_hash.go.
	OperatorPasswordHash string `envconfig:"OPERATOR_PASSWORD_HASH" default:""`

	// --- Jobs ---
	// Cron specs for the background sweeps (scheduler timezone = AppTimezone).
	JobCodeSweepSpec  string `envconfig:"JOB_CODE_SWEEP_SPEC" default:"0 * * * *"`
	JobDailyStatsSpec string `envconfig:"JOB_DAILY_STATS_SPEC" default:"0 0 * * *"`

	// --- Referral code generation ---
	// Attempts against the uniqueness constraint before giving up. The
	// caller retries later; generation never blocks the primary flow.
	ReferralCodeAttempts int `envconfig:"REFERRAL_CODE_ATTEMPTS" default:"5"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.MessageMaxLength <= 0 {
		return fmt.Errorf("MESSAGE_MAX_LENGTH must be > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.DBOpTimeout <= 0 {
		return fmt.Errorf("DB_OP_TIMEOUT must be > 0")
	}
	if c.ReferralCodeAttempts <= 0 {
		return fmt.Errorf("REFERRAL_CODE_ATTEMPTS must be > 0")
	}
	if c.OperatorPasswordHash != "" {
		if _, _, err := common.ParseArgon2idHash(c.OperatorPasswordHash); err != nil {
			return fmt.Errorf("OPERATOR_PASSWORD_HASH invalid (run scripts/generate_hash.go): %w", err)
		}
	}
	return nil
}

// Load reads the environment and fills the Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
