// Package common — errors.go defines the sentinel errors shared by every
// feature. Services branch on these with errors.Is to turn them into
// user-facing copy; they are expected outcomes, not system faults.
package common

import "errors"

// Ledger errors
var (
	// ErrUserNotFound — no user row for the given id/phone
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidAmount — zero or negative credit amount (caller bug)
	ErrInvalidAmount = errors.New("credit amount must be positive")
	// ErrNoCredits — balance is zero, a transcription cannot be recorded
	ErrNoCredits = errors.New("no credits remaining")
)

// Referral errors
var (
	// ErrReferralCodeTaken — the generated code collided with another user's
	ErrReferralCodeTaken = errors.New("referral code already taken")
	// ErrReferralCodeSet — the user already has a code (generation is idempotent)
	ErrReferralCodeSet = errors.New("referral code already set")
	// ErrCodeGenerationFailed — ran out of generation attempts, retry later
	ErrCodeGenerationFailed = errors.New("referral code generation failed")
)
