// Package referrals — service.go is the referral engine: code issuance and
// the redemption protocol. Balance mutation itself happens inside the
// store's atomic redemption operation; this layer normalizes input, decides
// test-mode short-circuits and translates outcomes into log lines.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/config"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

// Service is the referral engine.
type Service struct {
	store       ledger.Store
	maxAttempts int
	testMode    bool
}

// NewService creates the referral engine. Test mode is decided here, once,
// from configuration; no per-call branching happens in the business paths.
func NewService(store ledger.Store, cfg *config.Config) *Service {
	return &Service{
		store:       store,
		maxAttempts: cfg.ReferralCodeAttempts,
		testMode:    cfg.TestMode,
	}
}

// GenerateCodeForUser returns the user's referral code, generating and
// persisting one first if needed. Idempotent: an existing code is returned
// unchanged, including when a concurrent call won the assignment race.
// After maxAttempts collisions it gives up with ErrCodeGenerationFailed;
// callers treat issuance as best-effort and retry later.
func (s *Service) GenerateCodeForUser(ctx context.Context, userID int64) (string, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.ReferralCode != nil {
		return *u.ReferralCode, nil
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", fmt.Errorf("draw referral code: %w", err)
		}

		err = s.store.AssignReferralCode(ctx, userID, code)
		switch {
		case err == nil:
			log.WithFields(log.Fields{"user_id": userID, "code": code}).Info("Referral code issued")
			return code, nil
		case errors.Is(err, common.ErrReferralCodeTaken):
			continue
		case errors.Is(err, common.ErrReferralCodeSet):
			// Lost a race with a concurrent issuance; return the winner.
			u, err := s.store.UserByID(ctx, userID)
			if err != nil {
				return "", err
			}
			if u.ReferralCode != nil {
				return *u.ReferralCode, nil
			}
			continue
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("user %d after %d attempts: %w", userID, s.maxAttempts, common.ErrCodeGenerationFailed)
}

// ExtractCodeFromText finds a referral code embedded in a free-text message,
// or returns "" when there is none.
func (s *Service) ExtractCodeFromText(message string) string {
	return ExtractCode(message)
}

// Redeem turns a claimed code into an exactly-once credit grant to both
// parties. All business rejections come back as outcomes on the Redemption,
// never as errors; an error means the store failed and the caller may retry.
func (s *Service) Redeem(ctx context.Context, code string, refereeID int64) (*ledger.Redemption, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if s.testMode && IsMagicCode(code) {
		// Offline mode: canned results, no store access at all.
		return cannedRedemption(code), nil
	}

	if !validCodeShape(code) {
		return &ledger.Redemption{Outcome: ledger.RedeemInvalidCode}, nil
	}

	res, err := s.store.RedeemReferralCode(ctx, code, refereeID)
	if err != nil {
		return nil, fmt.Errorf("redeem code %s: %w", code, err)
	}

	switch res.Outcome {
	case ledger.RedeemSuccess:
		log.WithFields(log.Fields{
			"code":             code,
			"referrer_id":      res.Referrer.ID,
			"referee_id":       res.Referee.ID,
			"referrer_credits": res.ReferrerCredits,
			"referee_credits":  res.RefereeCredits,
			"uses_remaining":   res.CodeUsesRemaining,
		}).Info("Referral code redeemed")
	default:
		// Expected business outcomes, not faults.
		log.WithFields(log.Fields{
			"code":       code,
			"referee_id": refereeID,
			"outcome":    res.Outcome,
		}).Debug("Referral redemption rejected")
	}
	return res, nil
}

// validCodeShape checks length and alphabet without touching the store, so
// plainly malformed input never costs a database round trip.
func validCodeShape(code string) bool {
	if len(code) != ledger.ReferralCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// Fixed offline-mode codes and their canned outcomes. Integration tests of
// the controller layer drive every branch of the redemption state machine
// without a database.
const (
	MagicCodeSuccess     = "TEST100"
	MagicCodeMaxedOut    = "TEST200"
	MagicCodeSelf        = "TEST300"
	MagicCodeAlreadyUsed = "TEST400"
	MagicCodeCapReached  = "TEST500"
)

func cannedRedemption(code string) *ledger.Redemption {
	switch code {
	case MagicCodeSuccess:
		return &ledger.Redemption{
			Outcome:           ledger.RedeemSuccess,
			ReferrerCredits:   ledger.ReferralBonus,
			RefereeCredits:    ledger.ReferralBonus,
			CodeUsesRemaining: ledger.ReferralCodeMaxUses - 1,
		}
	case MagicCodeMaxedOut:
		return &ledger.Redemption{Outcome: ledger.RedeemCodeMaxedOut}
	case MagicCodeSelf:
		return &ledger.Redemption{Outcome: ledger.RedeemSelfReferral}
	case MagicCodeAlreadyUsed:
		return &ledger.Redemption{Outcome: ledger.RedeemAlreadyReferred}
	case MagicCodeCapReached:
		return &ledger.Redemption{
			Outcome:             ledger.RedeemSuccess,
			ReferrerCredits:     ledger.ReferralBonus,
			RefereeCredits:      0,
			RefereeLimitReached: true,
			CodeUsesRemaining:   ledger.ReferralCodeMaxUses - 1,
		}
	default:
		return &ledger.Redemption{Outcome: ledger.RedeemInvalidCode}
	}
}
