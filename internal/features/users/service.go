// Package users owns the user lifecycle: lazy creation on first contact and
// the read-only credit gate the webhook controller consults before spending
// any API money on a voice note.
package users

import (
	"context"

	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/ledger"
)

// WarningLevel tells the controller which copy to attach to a reply.
type WarningLevel string

const (
	WarningNone      WarningLevel = "none"
	WarningLow       WarningLevel = "low"       // at or below the low-balance threshold
	WarningExhausted WarningLevel = "exhausted" // zero credits, transcription blocked
)

// CreditCheck is the pre-flight gate result.
type CreditCheck struct {
	CanProceed       bool
	CreditsRemaining int
	WarningLevel     WarningLevel
}

// Service manages users.
type Service struct {
	store ledger.Store
}

// NewService creates the user service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// GetOrCreate returns the user for phone, creating them (with the free-trial
// grant) on first contact.
func (s *Service) GetOrCreate(ctx context.Context, phone string) (*ledger.User, error) {
	u, created, err := s.store.UpsertUser(ctx, phone)
	if err != nil {
		return nil, err
	}
	if created {
		log.WithFields(log.Fields{
			"user_id": u.ID,
			"credits": u.CreditsRemaining,
		}).Info("New user registered with free trial")
	}
	return u, nil
}

// CheckCredits is the gate the controller calls before starting a
// transcription. It upserts lazily, so a brand-new caller passes with their
// fresh trial balance.
func (s *Service) CheckCredits(ctx context.Context, phone string) (*CreditCheck, error) {
	u, err := s.GetOrCreate(ctx, phone)
	if err != nil {
		return nil, err
	}

	check := &CreditCheck{
		CanProceed:       u.CreditsRemaining > 0,
		CreditsRemaining: u.CreditsRemaining,
		WarningLevel:     WarningNone,
	}
	switch {
	case u.CreditsRemaining == 0:
		check.WarningLevel = WarningExhausted
	case u.CreditsRemaining <= ledger.LowBalanceThreshold:
		check.WarningLevel = WarningLow
	}
	return check, nil
}

// MarkIntroSeen records that the onboarding message went out; idempotent.
func (s *Service) MarkIntroSeen(ctx context.Context, userID int64) error {
	return s.store.MarkIntroSeen(ctx, userID)
}
