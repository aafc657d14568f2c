// Package credits is the credit manager: every balance mutation outside a
// redemption or a transcription goes through here, and it owns the
// referral-cap arithmetic and the usage-estimate heuristics.
package credits

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

// historyLimit caps the formatted history to keep the message short.
const historyLimit = 10

// defaultMonthsEstimate is returned whenever the cadence heuristic has no
// history to work from or anything goes wrong. Advisory copy only.
const defaultMonthsEstimate = 3

// ReferralCreditStatus reports a user's standing against the lifetime cap.
type ReferralCreditStatus struct {
	HasReachedLimit          bool
	TotalReferralCredits     int
	RemainingReferralCredits int
}

// Service manages credit balances.
type Service struct {
	store ledger.Store
}

// NewService creates the credit manager.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// AddCredits grants amount credits to the user. Non-positive amounts are a
// caller bug and are rejected before any store access.
func (s *Service) AddCredits(ctx context.Context, userID int64, amount int, op ledger.OperationType, metadata string) (*ledger.User, *ledger.CreditTransaction, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("amount %d: %w", amount, common.ErrInvalidAmount)
	}

	u, ct, err := s.store.AddCredits(ctx, userID, amount, op, metadata)
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"type":    op,
	}).Info("Credits granted")
	return u, ct, nil
}

// CheckReferralCreditLimit computes the user's standing against the lifetime
// referral cap. This is an advisory read for messaging; the store
// re-evaluates the same sum inside the redemption transaction, so two
// concurrent redemptions cannot both slip past the cap.
func (s *Service) CheckReferralCreditLimit(ctx context.Context, userID int64) (*ReferralCreditStatus, error) {
	total, err := s.store.ReferralCreditTotal(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining := ledger.ReferralLifetimeCap - total
	if remaining < 0 {
		remaining = 0
	}
	return &ReferralCreditStatus{
		HasReachedLimit:          remaining == 0,
		TotalReferralCredits:     total,
		RemainingReferralCredits: remaining,
	}, nil
}

// ShouldIssueReferralCode reports whether u is due a referral code. Pure,
// no I/O.
func (s *Service) ShouldIssueReferralCode(u *ledger.User) bool {
	return ledger.ShouldIssueReferralCode(u)
}

// EstimateMonthsRemaining estimates how many months the user's balance will
// last at their historical transcription cadence. Always returns a value in
// [1, 12]; on missing history or any failure it falls back to the default.
// Advisory only, feeds user-facing copy.
func (s *Service) EstimateMonthsRemaining(ctx context.Context, userID int64) int {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Months estimate fell back to default")
		return defaultMonthsEstimate
	}
	return estimateMonths(u, time.Now().UTC())
}

// estimateMonths derives credits / (transcriptions-per-day * 30), clamped.
func estimateMonths(u *ledger.User, now time.Time) int {
	if u.UsageCount <= 0 {
		return defaultMonthsEstimate
	}

	elapsedDays := now.Sub(u.CreatedAt).Hours() / 24
	if elapsedDays < 1 {
		elapsedDays = 1
	}
	perDay := float64(u.UsageCount) / elapsedDays
	if perDay <= 0 {
		return defaultMonthsEstimate
	}

	months := int(float64(u.CreditsRemaining) / (perDay * 30))
	if months < 1 {
		return 1
	}
	if months > 12 {
		return 12
	}
	return months
}

// History returns the user's recent ledger entries formatted for a chat
// message, newest first.
func (s *Service) History(ctx context.Context, userID int64) (string, error) {
	txs, err := s.store.TransactionsByUser(ctx, userID, historyLimit)
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "No credit activity yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your last %d credit movements:\n\n", len(txs))
	for i, tx := range txs {
		sign := "+"
		if tx.Amount < 0 {
			sign = ""
		}
		fmt.Fprintf(&sb, "%d. %s | %s%s | %s\n",
			i+1,
			tx.CreatedAt.Format("2006-01-02 15:04"),
			sign,
			common.FormatCredits(tx.Amount),
			describeOperation(tx.Type),
		)
	}
	return sb.String(), nil
}

func describeOperation(t ledger.OperationType) string {
	switch t {
	case ledger.OpPayment:
		return "purchase"
	case ledger.OpReferralBonus:
		return "referral reward"
	case ledger.OpReferralReceived:
		return "referral welcome bonus"
	case ledger.OpInitialFree:
		return "free trial"
	case ledger.OpPromotional:
		return "promotion"
	default:
		return string(t)
	}
}
