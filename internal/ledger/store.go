// Package ledger — store.go defines the Store capability: the single seam
// between business logic and durable state. Two implementations exist,
// selected once at the composition root: ledger/postgres (real transactional
// store) and ledger/memory (deterministic in-memory fake for tests and
// offline mode). Business code never branches on which one it holds.
package ledger

import "context"

// RedemptionOutcome is the terminal result of the redemption state machine.
type RedemptionOutcome string

const (
	// RedeemInvalidCode — no user owns this code.
	RedeemInvalidCode RedemptionOutcome = "invalid_code"
	// RedeemCodeMaxedOut — the code already has ReferralCodeMaxUses redemptions.
	RedeemCodeMaxedOut RedemptionOutcome = "code_maxed_out"
	// RedeemSelfReferral — the redeemer owns the code.
	RedeemSelfReferral RedemptionOutcome = "self_referral"
	// RedeemAlreadyReferred — this (referrer, referee) pair was already recorded.
	RedeemAlreadyReferred RedemptionOutcome = "already_referred"
	// RedeemSuccess — a referral was recorded. Per-side amounts may be
	// clamped by the lifetime cap, possibly to zero for the referee.
	RedeemSuccess RedemptionOutcome = "success"
)

// Redemption is the typed result of RedeemReferralCode. Business rejections
// are outcomes here, not errors: only infrastructure failures surface as
// errors from the store.
type Redemption struct {
	Outcome RedemptionOutcome

	// Populated on RedeemSuccess (Referrer also on the conflict outcomes
	// where the owner is known, so callers can build messaging).
	Referrer *User
	Referee  *User

	ReferrerCredits int // actually granted to the code owner
	RefereeCredits  int // actually granted to the redeemer

	// RefereeLimitReached marks the distinct success case where the referee's
	// lifetime cap left no headroom at all: the referrer is still credited.
	RefereeLimitReached bool

	// CodeUsesRemaining after this redemption, for user-facing copy.
	CodeUsesRemaining int
}

// TranscriptionParams describes one completed, delivered transcription.
type TranscriptionParams struct {
	UserID       int64
	AudioSeconds int
	WordCount    int
	STTCost      float64
	DeliveryCost float64
}

// PaymentParams describes one completed purchase.
type PaymentParams struct {
	UserID       int64
	Amount       float64
	Currency     string
	Credits      int
	Method       string
	ProviderTxID string
}

// Store is the ledger capability. Every multi-step mutation is atomic:
// either all of its writes become visible or none do, regardless of caller
// cancellation. Implementations must bound every operation in time and
// return common.Err* sentinels for the documented conditions.
type Store interface {
	// UpsertUser returns the user for phone, creating them with the initial
	// free-trial grant (balance and an initial_free transaction, atomically)
	// on first contact. The second result reports whether a row was created.
	UpsertUser(ctx context.Context, phone string) (*User, bool, error)

	// UserByPhone returns common.ErrUserNotFound when no such user exists.
	UserByPhone(ctx context.Context, phone string) (*User, error)

	// UserByID returns common.ErrUserNotFound when no such user exists.
	UserByID(ctx context.Context, id int64) (*User, error)

	// MarkIntroSeen flips has_seen_intro once; idempotent.
	MarkIntroSeen(ctx context.Context, id int64) error

	// AddCredits appends a credit transaction and increments the balance in
	// one atomic step. amount must already be validated positive by the
	// caller. Returns common.ErrUserNotFound (with the transaction insert
	// rolled back) when the user does not exist.
	AddCredits(ctx context.Context, userID int64, amount int, op OperationType, metadata string) (*User, *CreditTransaction, error)

	// ReferralCreditTotal sums the user's referral-typed transactions.
	ReferralCreditTotal(ctx context.Context, userID int64) (int, error)

	// TransactionsByUser returns the most recent transactions, newest first.
	TransactionsByUser(ctx context.Context, userID int64, limit int) ([]*CreditTransaction, error)

	// AssignReferralCode sets the user's code where none is set, resetting
	// the usage counter. Returns common.ErrReferralCodeTaken when another
	// user holds the code, common.ErrReferralCodeSet when this user already
	// has one, common.ErrUserNotFound when the user does not exist.
	AssignReferralCode(ctx context.Context, userID int64, code string) error

	// RedeemReferralCode runs the full redemption protocol in one atomic
	// step: validation (owner, usage cap, self, pair uniqueness), headroom
	// clamping, referral insert, usage-counter increment and up to two
	// credit grants. Concurrent redemptions are serialized on the involved
	// user rows; a pair-uniqueness race resolves to RedeemAlreadyReferred.
	RedeemReferralCode(ctx context.Context, code string, refereeID int64) (*Redemption, error)

	// UsersNeedingCode lists users eligible for a referral code who do not
	// have one yet (the retry sweep for failed fire-and-forget issuance).
	UsersNeedingCode(ctx context.Context) ([]*User, error)

	// RecordTranscription appends the transcription row and, atomically,
	// consumes exactly one credit, bumps the usage counters and sets
	// free_trial_used when the balance reaches zero. Returns
	// common.ErrNoCredits when the balance is already zero (the ledger never
	// goes negative) and common.ErrUserNotFound for unknown users.
	RecordTranscription(ctx context.Context, p TranscriptionParams) (*Transcription, *User, error)

	// RecordPayment appends the payment row and grants the purchased
	// credits (payment-typed transaction plus balance increment) atomically.
	RecordPayment(ctx context.Context, p PaymentParams) (*Payment, *User, error)

	// Stats returns an aggregate snapshot for operational logging.
	Stats(ctx context.Context) (*Stats, error)
}
