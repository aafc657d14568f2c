package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/ledger"
	"voxnote.app/whatsapp-bot/internal/ledger/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *ledger.User) {
	t.Helper()
	store := memory.New()
	u, _, err := store.UpsertUser(context.Background(), "+15550001")
	require.NoError(t, err)
	return NewService(store), store, u
}

func TestRecordPayment(t *testing.T) {
	svc, store, u := newTestService(t)
	ctx := context.Background()

	pay, after, err := svc.RecordPayment(ctx, ledger.PaymentParams{
		UserID:       u.ID,
		Amount:       4.99,
		Currency:     "USD",
		Credits:      100,
		Method:       "card",
		ProviderTxID: "ch_1abc",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.InitialFreeCredits+100, after.CreditsRemaining)
	assert.Equal(t, "ch_1abc", pay.ProviderTxID)
	assert.InDelta(t, 4.99, pay.Amount, 1e-9)

	// Payment row and credit grant commit together.
	txs, err := store.TransactionsByUser(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.OpPayment, txs[0].Type)
	assert.Equal(t, 100, txs[0].Amount)
}

func TestRecordPaymentRejectsInvalidParams(t *testing.T) {
	svc, store, u := newTestService(t)
	ctx := context.Background()

	for name, p := range map[string]ledger.PaymentParams{
		"zero credits":     {UserID: u.ID, Amount: 4.99, Credits: 0},
		"negative credits": {UserID: u.ID, Amount: 4.99, Credits: -10},
		"zero amount":      {UserID: u.ID, Amount: 0, Credits: 100},
	} {
		_, _, err := svc.RecordPayment(ctx, p)
		assert.ErrorIs(t, err, common.ErrInvalidAmount, name)
	}

	// Rejected before the store: balance untouched.
	after, err := store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InitialFreeCredits, after.CreditsRemaining)
}

func TestRecordPaymentUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.RecordPayment(context.Background(), ledger.PaymentParams{
		UserID: 999, Amount: 4.99, Credits: 100,
	})
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}
