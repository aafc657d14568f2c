// Package memory implements ledger.Store entirely in memory. It backs the
// deterministic test/offline mode and the service tests: same contract as
// the postgres store, no database. A single mutex serializes operations and
// every mutation is computed fully before it is applied, so a failing check
// (or an injected hook failure) leaves the state untouched — the in-memory
// analog of a rolled-back transaction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

// Hooks let tests force a failure at the point where the postgres store
// would be mid-transaction, to verify nothing partial persists.
type Hooks struct {
	// BeforeRedemptionApply runs after all redemption checks pass but before
	// any state changes. Returning an error aborts the redemption.
	BeforeRedemptionApply func() error
	// BeforeTranscriptionApply runs after the balance check but before the
	// decrement and the audit insert.
	BeforeTranscriptionApply func() error
}

// Store is the in-memory ledger.
type Store struct {
	mu sync.Mutex

	users   map[int64]*ledger.User
	byPhone map[string]int64
	byCode  map[string]int64

	transactions   []*ledger.CreditTransaction
	transcriptions []*ledger.Transcription
	referrals      []*ledger.Referral
	payments       []*ledger.Payment

	nextUserID int64
	nextTxID   int64
	nextRecID  int64
	nextRefID  int64
	nextPayID  int64

	// Hooks is test-only failure injection; nil funcs are ignored.
	Hooks Hooks
}

// New creates an empty in-memory ledger.
func New() *Store {
	return &Store{
		users:   make(map[int64]*ledger.User),
		byPhone: make(map[string]int64),
		byCode:  make(map[string]int64),
	}
}

var _ ledger.Store = (*Store)(nil)

func cloneUser(u *ledger.User) *ledger.User {
	c := *u
	if u.ReferralCode != nil {
		code := *u.ReferralCode
		c.ReferralCode = &code
	}
	return &c
}

func (s *Store) appendTransaction(userID int64, amount int, op ledger.OperationType, metadata string) *ledger.CreditTransaction {
	s.nextTxID++
	ct := &ledger.CreditTransaction{
		ID:        s.nextTxID,
		UserID:    userID,
		Amount:    amount,
		Type:      op,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	s.transactions = append(s.transactions, ct)
	return ct
}

func (s *Store) referralTotalLocked(userID int64) int {
	total := 0
	for _, ct := range s.transactions {
		if ct.UserID == userID && ct.Type.IsReferral() {
			total += ct.Amount
		}
	}
	return total
}

// UpsertUser mirrors the lazy creation of the postgres store, including the
// initial free-trial grant and its transaction row.
func (s *Store) UpsertUser(_ context.Context, phone string) (*ledger.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPhone[phone]; ok {
		return cloneUser(s.users[id]), false, nil
	}

	s.nextUserID++
	now := time.Now().UTC()
	u := &ledger.User{
		ID:               s.nextUserID,
		Phone:            phone,
		CreditsRemaining: ledger.InitialFreeCredits,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.users[u.ID] = u
	s.byPhone[phone] = u.ID
	s.appendTransaction(u.ID, ledger.InitialFreeCredits, ledger.OpInitialFree, "free trial grant")
	return cloneUser(u), true, nil
}

func (s *Store) UserByPhone(_ context.Context, phone string) (*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPhone[phone]
	if !ok {
		return nil, fmt.Errorf("phone %s: %w", phone, common.ErrUserNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) UserByID(_ context.Context, id int64) (*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, common.ErrUserNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) MarkIntroSeen(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, common.ErrUserNotFound)
	}
	u.HasSeenIntro = true
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AddCredits(_ context.Context, userID int64, amount int, op ledger.OperationType, metadata string) (*ledger.User, *ledger.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil, fmt.Errorf("user %d: %w", userID, common.ErrUserNotFound)
	}
	ct := s.appendTransaction(userID, amount, op, metadata)
	u.CreditsRemaining += amount
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), ct, nil
}

func (s *Store) ReferralCreditTotal(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.referralTotalLocked(userID), nil
}

func (s *Store) TransactionsByUser(_ context.Context, userID int64, limit int) ([]*ledger.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.CreditTransaction
	for _, ct := range s.transactions {
		if ct.UserID == userID {
			c := *ct
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AssignReferralCode(_ context.Context, userID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, common.ErrUserNotFound)
	}
	if u.ReferralCode != nil {
		return common.ErrReferralCodeSet
	}
	if _, taken := s.byCode[code]; taken {
		return fmt.Errorf("code %s: %w", code, common.ErrReferralCodeTaken)
	}
	c := code
	u.ReferralCode = &c
	u.ReferralCodeUses = 0
	u.UpdatedAt = time.Now().UTC()
	s.byCode[code] = userID
	return nil
}

// RedeemReferralCode replays the postgres protocol: checks in spec order,
// then all mutations at once.
func (s *Store) RedeemReferralCode(_ context.Context, code string, refereeID int64) (*ledger.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ownerID, ok := s.byCode[code]
	if !ok {
		return &ledger.Redemption{Outcome: ledger.RedeemInvalidCode}, nil
	}
	owner := s.users[ownerID]

	if owner.ReferralCodeUses >= ledger.ReferralCodeMaxUses {
		return &ledger.Redemption{Outcome: ledger.RedeemCodeMaxedOut, Referrer: cloneUser(owner)}, nil
	}

	if ownerID == refereeID {
		return &ledger.Redemption{Outcome: ledger.RedeemSelfReferral}, nil
	}

	referee, ok := s.users[refereeID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", refereeID, common.ErrUserNotFound)
	}

	for _, r := range s.referrals {
		if r.ReferrerID == ownerID && r.RefereeID == refereeID {
			return &ledger.Redemption{Outcome: ledger.RedeemAlreadyReferred, Referrer: cloneUser(owner)}, nil
		}
	}

	referrerGrant := ledger.ClampReferralGrant(s.referralTotalLocked(ownerID))
	refereeGrant := ledger.ClampReferralGrant(s.referralTotalLocked(refereeID))

	if s.Hooks.BeforeRedemptionApply != nil {
		if err := s.Hooks.BeforeRedemptionApply(); err != nil {
			return nil, fmt.Errorf("redeem referral code: %w", err)
		}
	}

	now := time.Now().UTC()
	s.nextRefID++
	s.referrals = append(s.referrals, &ledger.Referral{
		ID:              s.nextRefID,
		ReferrerID:      ownerID,
		RefereeID:       refereeID,
		ReferrerCredits: referrerGrant,
		RefereeCredits:  refereeGrant,
		CreatedAt:       now,
	})

	owner.ReferralCodeUses++
	owner.CreditsRemaining += referrerGrant
	owner.UpdatedAt = now
	if referrerGrant > 0 {
		s.appendTransaction(ownerID, referrerGrant, ledger.OpReferralBonus, fmt.Sprintf("referee:%d", refereeID))
	}

	referee.CreditsRemaining += refereeGrant
	referee.UpdatedAt = now
	if refereeGrant > 0 {
		s.appendTransaction(refereeID, refereeGrant, ledger.OpReferralReceived, fmt.Sprintf("referrer:%d", ownerID))
	}

	usesRemaining := ledger.ReferralCodeMaxUses - owner.ReferralCodeUses
	if usesRemaining < 0 {
		usesRemaining = 0
	}
	return &ledger.Redemption{
		Outcome:             ledger.RedeemSuccess,
		Referrer:            cloneUser(owner),
		Referee:             cloneUser(referee),
		ReferrerCredits:     referrerGrant,
		RefereeCredits:      refereeGrant,
		RefereeLimitReached: refereeGrant == 0,
		CodeUsesRemaining:   usesRemaining,
	}, nil
}

func (s *Store) UsersNeedingCode(_ context.Context) ([]*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.User
	for _, u := range s.users {
		if ledger.ShouldIssueReferralCode(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) RecordTranscription(_ context.Context, p ledger.TranscriptionParams) (*ledger.Transcription, *ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[p.UserID]
	if !ok {
		return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrUserNotFound)
	}
	if u.CreditsRemaining <= 0 {
		return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrNoCredits)
	}

	if s.Hooks.BeforeTranscriptionApply != nil {
		if err := s.Hooks.BeforeTranscriptionApply(); err != nil {
			return nil, nil, fmt.Errorf("record transcription: %w", err)
		}
	}

	now := time.Now().UTC()
	u.CreditsRemaining--
	u.UsageCount++
	u.TotalSeconds += p.AudioSeconds
	if u.CreditsRemaining <= 0 {
		u.FreeTrialUsed = true
	}
	u.UpdatedAt = now

	s.nextRecID++
	rec := &ledger.Transcription{
		ID:           s.nextRecID,
		UserID:       p.UserID,
		AudioSeconds: p.AudioSeconds,
		WordCount:    p.WordCount,
		STTCost:      p.STTCost,
		DeliveryCost: p.DeliveryCost,
		TotalCost:    p.STTCost + p.DeliveryCost,
		CreatedAt:    now,
	}
	s.transcriptions = append(s.transcriptions, rec)

	r := *rec
	return &r, cloneUser(u), nil
}

func (s *Store) RecordPayment(_ context.Context, p ledger.PaymentParams) (*ledger.Payment, *ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[p.UserID]
	if !ok {
		return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrUserNotFound)
	}

	now := time.Now().UTC()
	s.nextPayID++
	pay := &ledger.Payment{
		ID:           s.nextPayID,
		UserID:       p.UserID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Credits:      p.Credits,
		Method:       p.Method,
		ProviderTxID: p.ProviderTxID,
		CreatedAt:    now,
	}
	s.payments = append(s.payments, pay)
	s.appendTransaction(p.UserID, p.Credits, ledger.OpPayment, fmt.Sprintf("payment:%s", p.ProviderTxID))
	u.CreditsRemaining += p.Credits
	u.UpdatedAt = now

	cp := *pay
	return &cp, cloneUser(u), nil
}

func (s *Store) Stats(_ context.Context) (*ledger.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &ledger.Stats{
		Users:          int64(len(s.users)),
		Transcriptions: int64(len(s.transcriptions)),
		Referrals:      int64(len(s.referrals)),
		Payments:       int64(len(s.payments)),
	}
	for _, u := range s.users {
		st.CreditsInFlight += int64(u.CreditsRemaining)
	}
	return st, nil
}

// Referrals returns a copy of all referral records; used by tests to verify
// rollback behavior through direct store reads.
func (s *Store) Referrals() []*ledger.Referral {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ledger.Referral, 0, len(s.referrals))
	for _, r := range s.referrals {
		c := *r
		out = append(out, &c)
	}
	return out
}

// Transcriptions returns a copy of all transcription records.
func (s *Store) Transcriptions() []*ledger.Transcription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ledger.Transcription, 0, len(s.transcriptions))
	for _, r := range s.transcriptions {
		c := *r
		out = append(out, &c)
	}
	return out
}
