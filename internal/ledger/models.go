// Package ledger defines the domain model of the credit ledger: users,
// credit transactions, transcriptions, referrals and payments, plus the
// business constants and pure rules that both store implementations share.
//
// models.go describes the persistent entities.
package ledger

import "time"

// User is one WhatsApp contact, keyed by their stable phone identifier.
// Created lazily on first inbound message, never deleted.
type User struct {
	ID               int64     `db:"id"`
	Phone            string    `db:"phone"`              // external phone identifier, unique
	CreditsRemaining int       `db:"credits_remaining"`  // never negative
	FreeTrialUsed    bool      `db:"free_trial_used"`    // set once the balance hits 0 after a consumption
	HasSeenIntro     bool      `db:"has_seen_intro"`     // gates the first-contact onboarding flow
	UsageCount       int       `db:"usage_count"`        // total transcriptions, monotonic
	TotalSeconds     int       `db:"total_seconds"`      // total audio transcribed, monotonic
	ReferralCode     *string   `db:"referral_code"`      // optional 6-char code, unique across users
	ReferralCodeUses int       `db:"referral_code_uses"` // successful redemptions of this user's code
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// OperationType classifies a credit transaction.
type OperationType string

const (
	OpPayment          OperationType = "payment"           // credits bought
	OpReferralBonus    OperationType = "referral_bonus"    // granted as referrer
	OpReferralReceived OperationType = "referral_received" // granted as referee
	OpInitialFree      OperationType = "initial_free"      // free-trial grant on signup
	OpPromotional      OperationType = "promotional"       // manual promo grant
)

// IsReferral reports whether the operation counts against the lifetime
// referral cap.
func (t OperationType) IsReferral() bool {
	return t == OpReferralBonus || t == OpReferralReceived
}

// CreditTransaction is one append-only ledger entry. The sum of a user's
// referral-typed entries never exceeds ReferralLifetimeCap.
type CreditTransaction struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	Amount    int           `db:"credits_amount"` // signed delta
	Type      OperationType `db:"operation_type"`
	Metadata  string        `db:"metadata"` // free-form, e.g. counterpart user id
	CreatedAt time.Time     `db:"created_at"`
}

// Transcription is the immutable audit record of one delivered transcription.
type Transcription struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	AudioSeconds int       `db:"audio_seconds"`
	WordCount    int       `db:"word_count"`
	STTCost      float64   `db:"stt_cost"`
	DeliveryCost float64   `db:"delivery_cost"`
	TotalCost    float64   `db:"total_cost"`
	CreatedAt    time.Time `db:"created_at"`
}

// Referral records a redeemed code. At most one row per ordered
// (referrer, referee) pair; the uniqueness is what makes redemption
// idempotent per pair.
type Referral struct {
	ID              int64     `db:"id"`
	ReferrerID      int64     `db:"referrer_id"`
	RefereeID       int64     `db:"referee_id"`
	ReferrerCredits int       `db:"referrer_credits"` // actually granted, may be clamped
	RefereeCredits  int       `db:"referee_credits"`
	CreatedAt       time.Time `db:"created_at"`
}

// Payment records a completed purchase. It shares the ledger: recording a
// payment also grants the purchased credits via a payment-typed transaction.
type Payment struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	Amount       float64   `db:"amount"`
	Currency     string    `db:"currency"`
	Credits      int       `db:"credits_purchased"`
	Method       string    `db:"payment_method"`
	ProviderTxID string    `db:"provider_tx_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// Stats is an aggregate snapshot of the ledger, logged by the daily job.
type Stats struct {
	Users          int64
	Transcriptions int64
	Referrals      int64
	Payments       int64
	CreditsInFlight int64 // sum of all current balances
}
