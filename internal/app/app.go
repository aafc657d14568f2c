// Package app is the composition root: it builds the database pool, selects
// the ledger store implementation, constructs the services and wires the
// scheduler. app.go also embeds the SQL migrations so a deploy is a single
// binary.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/config"
	"voxnote.app/whatsapp-bot/internal/db/postgres"
	"voxnote.app/whatsapp-bot/internal/features/credits"
	"voxnote.app/whatsapp-bot/internal/features/payments"
	"voxnote.app/whatsapp-bot/internal/features/referrals"
	"voxnote.app/whatsapp-bot/internal/features/usage"
	"voxnote.app/whatsapp-bot/internal/features/users"
	"voxnote.app/whatsapp-bot/internal/jobs"
	"voxnote.app/whatsapp-bot/internal/ledger"
	ledgermem "voxnote.app/whatsapp-bot/internal/ledger/memory"
	ledgerpg "voxnote.app/whatsapp-bot/internal/ledger/postgres"
)

// App holds the wired components. The webhook controller attaches to the
// exported services; DB is nil in test mode.
type App struct {
	DB        *pgxpool.Pool
	Store     ledger.Store
	Scheduler *jobs.Scheduler

	Users     *users.Service
	Credits   *credits.Service
	Referrals *referrals.Service
	Usage     *usage.Service
	Payments  *payments.Service
}

// New builds the application. The store implementation is chosen exactly
// once, here: the in-memory fake under APP_TEST_MODE, PostgreSQL otherwise.
// Nothing downstream ever branches on the mode again.
func New(ctx context.Context, cfg *config.Config, send jobs.SendFunc) (*App, error) {
	var (
		pool  *pgxpool.Pool
		store ledger.Store
	)

	if cfg.TestMode {
		log.Warn("Test mode: using the in-memory ledger store, nothing is persisted")
		store = ledgermem.New()
	} else {
		var err error
		pool, err = postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		store = ledgerpg.New(pool, cfg.DBOpTimeout)
	}

	userSvc := users.NewService(store)
	creditSvc := credits.NewService(store)
	referralSvc := referrals.NewService(store, cfg)
	usageSvc := usage.NewService(store, creditSvc, referralSvc)
	paymentSvc := payments.NewService(store)

	scheduler := jobs.NewScheduler(store, referralSvc, send, cfg)

	return &App{
		DB:        pool,
		Store:     store,
		Scheduler: scheduler,
		Users:     userSvc,
		Credits:   creditSvc,
		Referrals: referralSvc,
		Usage:     usageSvc,
		Payments:  paymentSvc,
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// runMigrations applies all SQL migrations in order.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002CreditTransactions},
		{3, migration003Transcriptions},
		{4, migration004Referrals},
		{5, migration005Payments},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		log.Infof("Migration %d applied", m.version)
	}
	return nil
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    phone VARCHAR(32) UNIQUE NOT NULL,
    credits_remaining INTEGER NOT NULL DEFAULT 0 CHECK (credits_remaining >= 0),
    free_trial_used BOOLEAN NOT NULL DEFAULT FALSE,
    has_seen_intro BOOLEAN NOT NULL DEFAULT FALSE,
    usage_count INTEGER NOT NULL DEFAULT 0,
    total_seconds INTEGER NOT NULL DEFAULT 0,
    referral_code VARCHAR(6) UNIQUE,
    referral_code_uses INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone);
CREATE INDEX IF NOT EXISTS idx_users_referral_code ON users(referral_code);
`

var migration002CreditTransactions = `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    credits_amount INTEGER NOT NULL,
    operation_type VARCHAR(32) NOT NULL,
    metadata TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_type ON credit_transactions(user_id, operation_type);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_created_at ON credit_transactions(created_at DESC);
`

var migration003Transcriptions = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    audio_seconds INTEGER NOT NULL DEFAULT 0,
    word_count INTEGER NOT NULL DEFAULT 0,
    stt_cost NUMERIC(10,6) NOT NULL DEFAULT 0,
    delivery_cost NUMERIC(10,6) NOT NULL DEFAULT 0,
    total_cost NUMERIC(10,6) NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_user ON transcriptions(user_id);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at DESC);
`

var migration004Referrals = `
CREATE TABLE IF NOT EXISTS referrals (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL REFERENCES users(id),
    referee_id BIGINT NOT NULL REFERENCES users(id),
    referrer_credits INTEGER NOT NULL DEFAULT 0,
    referee_credits INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    UNIQUE (referrer_id, referee_id)
);
CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);
CREATE INDEX IF NOT EXISTS idx_referrals_referee ON referrals(referee_id);
`

var migration005Payments = `
CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    amount NUMERIC(10,2) NOT NULL,
    currency VARCHAR(8) NOT NULL,
    credits_purchased INTEGER NOT NULL,
    payment_method VARCHAR(32) NOT NULL DEFAULT '',
    provider_tx_id VARCHAR(128) NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id);
`
