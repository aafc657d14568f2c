package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampReferralGrant(t *testing.T) {
	tests := []struct {
		name  string
		total int
		want  int
	}{
		{"no referral credits yet", 0, 5},
		{"plenty of headroom", 10, 5},
		{"exactly one bonus left", 20, 5},
		{"partial headroom", 22, 3},
		{"one credit left", 24, 1},
		{"cap reached", 25, 0},
		{"over cap", 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampReferralGrant(tt.total))
		})
	}
}

func TestShouldIssueReferralCode(t *testing.T) {
	code := "ABCDEF"

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"low balance in trial", User{CreditsRemaining: 4}, true},
		{"at zero in trial", User{CreditsRemaining: 0}, true},
		{"balance above threshold", User{CreditsRemaining: 5}, false},
		{"trial already used", User{CreditsRemaining: 2, FreeTrialUsed: true}, false},
		{"code already issued", User{CreditsRemaining: 2, ReferralCode: &code}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldIssueReferralCode(&tt.user))
		})
	}
}

func TestOperationTypeIsReferral(t *testing.T) {
	assert.True(t, OpReferralBonus.IsReferral())
	assert.True(t, OpReferralReceived.IsReferral())
	assert.False(t, OpPayment.IsReferral())
	assert.False(t, OpInitialFree.IsReferral())
	assert.False(t, OpPromotional.IsReferral())
}
