// Package payments records completed purchases in the shared ledger: the
// payment row and the purchased credits commit together.
package payments

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

// Service records payments.
type Service struct {
	store ledger.Store
}

// NewService creates the payment service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// RecordPayment stores a completed purchase and grants its credits. Called
// by the payment-provider webhook after the charge settles; the provider
// transaction id is kept for reconciliation.
func (s *Service) RecordPayment(ctx context.Context, p ledger.PaymentParams) (*ledger.Payment, *ledger.User, error) {
	if p.Credits <= 0 {
		return nil, nil, fmt.Errorf("credits %d: %w", p.Credits, common.ErrInvalidAmount)
	}
	if p.Amount <= 0 {
		return nil, nil, fmt.Errorf("amount %.2f: %w", p.Amount, common.ErrInvalidAmount)
	}

	pay, u, err := s.store.RecordPayment(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  p.UserID,
		"credits":  p.Credits,
		"amount":   p.Amount,
		"currency": p.Currency,
		"method":   p.Method,
	}).Info("Payment recorded")
	return pay, u, nil
}
