package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote.app/whatsapp-bot/internal/ledger"
	"voxnote.app/whatsapp-bot/internal/ledger/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewService(store), store
}

func TestGetOrCreate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u, err := svc.GetOrCreate(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, ledger.InitialFreeCredits, u.CreditsRemaining)
	assert.False(t, u.FreeTrialUsed)
	assert.False(t, u.HasSeenIntro)
	assert.Nil(t, u.ReferralCode)

	// The trial grant is on the ledger, not just the balance.
	txs, err := store.TransactionsByUser(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.OpInitialFree, txs[0].Type)
	assert.Equal(t, ledger.InitialFreeCredits, txs[0].Amount)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, "+15550001")
	require.NoError(t, err)

	again, err := svc.GetOrCreate(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// No second trial grant.
	txs, err := store.TransactionsByUser(ctx, first.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestCheckCredits(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Brand-new caller passes on their fresh trial.
	check, err := svc.CheckCredits(ctx, "+15550001")
	require.NoError(t, err)
	assert.True(t, check.CanProceed)
	assert.Equal(t, ledger.InitialFreeCredits, check.CreditsRemaining)
	assert.Equal(t, WarningNone, check.WarningLevel)

	u, err := store.UserByPhone(ctx, "+15550001")
	require.NoError(t, err)

	drain := func(target int) {
		t.Helper()
		cur := u.CreditsRemaining
		for cur > target {
			_, after, err := store.RecordTranscription(ctx, ledger.TranscriptionParams{UserID: u.ID, AudioSeconds: 10})
			require.NoError(t, err)
			cur = after.CreditsRemaining
		}
	}

	drain(ledger.LowBalanceThreshold)
	check, err = svc.CheckCredits(ctx, "+15550001")
	require.NoError(t, err)
	assert.True(t, check.CanProceed)
	assert.Equal(t, WarningLow, check.WarningLevel)

	drain(0)
	check, err = svc.CheckCredits(ctx, "+15550001")
	require.NoError(t, err)
	assert.False(t, check.CanProceed)
	assert.Equal(t, 0, check.CreditsRemaining)
	assert.Equal(t, WarningExhausted, check.WarningLevel)
}

func TestMarkIntroSeen(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u, err := svc.GetOrCreate(ctx, "+15550001")
	require.NoError(t, err)

	require.NoError(t, svc.MarkIntroSeen(ctx, u.ID))
	require.NoError(t, svc.MarkIntroSeen(ctx, u.ID)) // idempotent

	after, err := store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, after.HasSeenIntro)

	assert.Error(t, svc.MarkIntroSeen(ctx, 999))
}
