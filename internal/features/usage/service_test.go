package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/config"
	"voxnote.app/whatsapp-bot/internal/features/credits"
	"voxnote.app/whatsapp-bot/internal/features/referrals"
	"voxnote.app/whatsapp-bot/internal/ledger"
	"voxnote.app/whatsapp-bot/internal/ledger/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	creditsSvc := credits.NewService(store)
	referralSvc := referrals.NewService(store, &config.Config{ReferralCodeAttempts: 5})
	return NewService(store, creditsSvc, referralSvc), store
}

func seedUser(t *testing.T, store *memory.Store, phone string) *ledger.User {
	t.Helper()
	u, _, err := store.UpsertUser(context.Background(), phone)
	require.NoError(t, err)
	return u
}

// drainTo records transcriptions directly against the store until the user's
// balance reaches target.
func drainTo(t *testing.T, store *memory.Store, userID int64, target int) *ledger.User {
	t.Helper()
	u, err := store.UserByID(context.Background(), userID)
	require.NoError(t, err)
	for u.CreditsRemaining > target {
		_, u, err = store.RecordTranscription(context.Background(), ledger.TranscriptionParams{
			UserID: userID, AudioSeconds: 30, WordCount: 80,
		})
		require.NoError(t, err)
	}
	return u
}

func TestRecordTranscription(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := seedUser(t, store, "+15550001")

	res, err := svc.RecordTranscription(ctx, u.ID, 42, 120, 0.012, 0.005)
	require.NoError(t, err)

	assert.Equal(t, ledger.InitialFreeCredits-1, res.User.CreditsRemaining)
	assert.Equal(t, 1, res.User.UsageCount)
	assert.Equal(t, 42, res.User.TotalSeconds)
	assert.False(t, res.User.FreeTrialUsed)
	assert.Nil(t, res.LowBalance)
	assert.Empty(t, res.IssuedReferralCode)

	require.NotNil(t, res.Transcription)
	assert.Equal(t, 42, res.Transcription.AudioSeconds)
	assert.Equal(t, 120, res.Transcription.WordCount)
	assert.InDelta(t, 0.017, res.Transcription.TotalCost, 1e-9)
}

func TestRecordTranscriptionLastCredit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := seedUser(t, store, "+15550001")
	drainTo(t, store, u.ID, 1)

	res, err := svc.RecordTranscription(ctx, u.ID, 30, 80, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, res.User.CreditsRemaining)
	assert.True(t, res.User.FreeTrialUsed)
	assert.Equal(t, ledger.InitialFreeCredits, res.User.UsageCount)
}

func TestRecordTranscriptionZeroBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := seedUser(t, store, "+15550001")
	drainTo(t, store, u.ID, 0)
	before := len(store.Transcriptions())

	_, err := svc.RecordTranscription(ctx, u.ID, 30, 80, 0, 0)
	require.ErrorIs(t, err, common.ErrNoCredits)

	// The balance never goes negative and nothing is recorded.
	after, err2 := store.UserByID(ctx, u.ID)
	require.NoError(t, err2)
	assert.Equal(t, 0, after.CreditsRemaining)
	assert.Len(t, store.Transcriptions(), before)
}

func TestRecordTranscriptionUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordTranscription(context.Background(), 999, 30, 80, 0, 0)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestRecordTranscriptionIssuesReferralCode(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := seedUser(t, store, "+15550001")
	drainTo(t, store, u.ID, ledger.LowBalanceThreshold+1)

	// Crossing the threshold issues the code as a post-commit side effect.
	res, err := svc.RecordTranscription(ctx, u.ID, 30, 80, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, ledger.LowBalanceThreshold, res.User.CreditsRemaining)
	require.NotEmpty(t, res.IssuedReferralCode)
	require.NotNil(t, res.User.ReferralCode)
	assert.Equal(t, res.IssuedReferralCode, *res.User.ReferralCode)

	// The next recording finds the code already issued and reports nothing.
	res, err = svc.RecordTranscription(ctx, u.ID, 30, 80, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, res.IssuedReferralCode)
}

func TestRecordTranscriptionLowBalanceContext(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := seedUser(t, store, "+15550001")
	drainTo(t, store, u.ID, 2)

	res, err := svc.RecordTranscription(ctx, u.ID, 30, 80, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, res.User.CreditsRemaining)
	require.NotNil(t, res.LowBalance)
	assert.NotEmpty(t, res.LowBalance.ReferralCode)
	assert.GreaterOrEqual(t, res.LowBalance.MonthsRemaining, 1)
	assert.LessOrEqual(t, res.LowBalance.MonthsRemaining, 12)
}

func TestRecordTranscriptionRollsBackOnStoreFailure(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := seedUser(t, store, "+15550001")

	boom := errors.New("connection reset")
	store.Hooks.BeforeTranscriptionApply = func() error { return boom }

	_, err := svc.RecordTranscription(ctx, u.ID, 30, 80, 0, 0)
	require.ErrorIs(t, err, boom)

	after, err := store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InitialFreeCredits, after.CreditsRemaining)
	assert.Equal(t, 0, after.UsageCount)
	assert.Empty(t, store.Transcriptions())
}
