// Package usage converts "a transcription was produced and delivered" into a
// durable ledger effect. It is the single call site for credit consumption.
package usage

import (
	"context"

	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/features/credits"
	"voxnote.app/whatsapp-bot/internal/features/referrals"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

// LowBalanceInfo is the messaging context prepared when a user is down to
// their last credit: their referral code (so they can earn more) and a rough
// estimate of how long purchased credits would last them.
type LowBalanceInfo struct {
	ReferralCode    string
	MonthsRemaining int
}

// Result of recording one transcription.
type Result struct {
	Transcription *ledger.Transcription
	User          *ledger.User
	// LowBalance is set when the post-decrement balance is exactly 1.
	// Best-effort: may be nil even at balance 1 if the side lookups failed.
	LowBalance *LowBalanceInfo
	// IssuedReferralCode is set when this call issued the user's code.
	IssuedReferralCode string
}

// Service is the usage accountant.
type Service struct {
	store     ledger.Store
	credits   *credits.Service
	referrals *referrals.Service
}

// NewService creates the usage accountant.
func NewService(store ledger.Store, creditsSvc *credits.Service, referralSvc *referrals.Service) *Service {
	return &Service{store: store, credits: creditsSvc, referrals: referralSvc}
}

// RecordTranscription must be called only after the reply has been handed to
// the outbound transport: a failed send must not consume a credit. The
// ledger effect (transcription row, one-credit decrement, counters,
// free-trial flag) is a single atomic store operation; everything after it
// is a best-effort post-commit side effect that is logged and swallowed on
// failure, never allowed to fail or roll back the recording.
func (s *Service) RecordTranscription(ctx context.Context, userID int64, audioSeconds, wordCount int, sttCost, deliveryCost float64) (*Result, error) {
	rec, u, err := s.store.RecordTranscription(ctx, ledger.TranscriptionParams{
		UserID:       userID,
		AudioSeconds: audioSeconds,
		WordCount:    wordCount,
		STTCost:      sttCost,
		DeliveryCost: deliveryCost,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":           userID,
		"audio_seconds":     audioSeconds,
		"credits_remaining": u.CreditsRemaining,
	}).Info("Transcription recorded")

	res := &Result{Transcription: rec, User: u}
	s.runPostCommitHooks(ctx, res)
	return res, nil
}

// runPostCommitHooks issues a referral code once the user becomes eligible
// and prepares low-balance messaging context at exactly one credit left.
// Both are advisory; failures are logged and dropped (the hourly sweep in
// internal/jobs retries missed code issuance).
func (s *Service) runPostCommitHooks(ctx context.Context, res *Result) {
	u := res.User

	if s.credits.ShouldIssueReferralCode(u) {
		code, err := s.referrals.GenerateCodeForUser(ctx, u.ID)
		if err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("Deferred referral code issuance")
		} else {
			res.IssuedReferralCode = code
			refreshed, err := s.store.UserByID(ctx, u.ID)
			if err == nil {
				res.User = refreshed
				u = refreshed
			}
		}
	}

	if u.CreditsRemaining == 1 {
		info := &LowBalanceInfo{
			MonthsRemaining: s.credits.EstimateMonthsRemaining(ctx, u.ID),
		}
		code, err := s.referrals.GenerateCodeForUser(ctx, u.ID)
		if err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("Low-balance context without referral code")
		} else {
			info.ReferralCode = code
		}
		res.LowBalance = info
	}
}
