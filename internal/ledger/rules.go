// Package ledger — rules.go holds the business constants and the pure
// decision functions shared by both store implementations and the services.
package ledger

// Business constants. These define ledger semantics and are deliberately not
// configurable: changing them per deployment would silently change what the
// stored history means.
const (
	// InitialFreeCredits is the free-trial grant on first contact.
	InitialFreeCredits = 50
	// ReferralBonus is the nominal grant per side of a redemption.
	ReferralBonus = 5
	// ReferralLifetimeCap limits the credits one user may accumulate from
	// referral activity, across both roles, for their lifetime.
	ReferralLifetimeCap = 25
	// ReferralCodeMaxUses limits distinct redemptions of one user's code.
	ReferralCodeMaxUses = 5
	// ReferralCodeLength is the fixed code length.
	ReferralCodeLength = 6
	// LowBalanceThreshold is the balance at or below which a still-trialing
	// user gets a referral code issued.
	LowBalanceThreshold = 4
)

// ClampReferralGrant returns how many credits may actually be granted to a
// user whose lifetime referral total is already totalReferral. The result is
// in [0, ReferralBonus].
func ClampReferralGrant(totalReferral int) int {
	headroom := ReferralLifetimeCap - totalReferral
	if headroom <= 0 {
		return 0
	}
	if headroom < ReferralBonus {
		return headroom
	}
	return ReferralBonus
}

// ShouldIssueReferralCode reports whether u is due a referral code: low on
// credits, still inside the free trial, and without a code already.
func ShouldIssueReferralCode(u *User) bool {
	return u.CreditsRemaining <= LowBalanceThreshold &&
		!u.FreeTrialUsed &&
		u.ReferralCode == nil
}
