// Package postgres implements ledger.Store on PostgreSQL. Every multi-step
// mutation runs in one database transaction so the ledger never exposes a
// partial write: balance updates and their transaction rows commit together
// or not at all. Concurrent redemptions are serialized with row locks
// (SELECT ... FOR UPDATE) and the UNIQUE(referrer_id, referee_id) constraint
// turns any remaining race into a detectable conflict.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const userColumns = `id, phone, credits_remaining, free_trial_used, has_seen_intro,
	usage_count, total_seconds, referral_code, referral_code_uses, created_at, updated_at`

// Store is the production ledger store.
type Store struct {
	db        *pgxpool.Pool
	opTimeout time.Duration
}

// New creates a store. opTimeout bounds every single operation; on expiry
// the operation fails with a retryable error instead of hanging the caller.
func New(db *pgxpool.Pool, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*ledger.User, error) {
	var u ledger.User
	err := row.Scan(
		&u.ID, &u.Phone, &u.CreditsRemaining, &u.FreeTrialUsed, &u.HasSeenIntro,
		&u.UsageCount, &u.TotalSeconds, &u.ReferralCode, &u.ReferralCodeUses,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// UpsertUser returns the user for phone, creating them with the free-trial
// grant on first contact. Creation inserts the user row and the initial_free
// credit transaction in one database transaction.
func (s *Store) UpsertUser(ctx context.Context, phone string) (*ledger.User, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// ON CONFLICT DO NOTHING returns no row when the user already exists.
	u, err := scanUser(tx.QueryRow(ctx, `
		INSERT INTO users (phone, credits_remaining)
		VALUES ($1, $2)
		ON CONFLICT (phone) DO NOTHING
		RETURNING `+userColumns,
		phone, ledger.InitialFreeCredits,
	))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		existing, err := scanUser(tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone,
		))
		if err != nil {
			return nil, false, fmt.Errorf("read user: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit: %w", err)
		}
		return existing, false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_transactions (user_id, credits_amount, operation_type, metadata)
		VALUES ($1, $2, $3, 'free trial grant')
	`, u.ID, ledger.InitialFreeCredits, ledger.OpInitialFree)
	if err != nil {
		return nil, false, fmt.Errorf("record initial grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return u, true, nil
}

// UserByPhone returns common.ErrUserNotFound for unknown phones.
func (s *Store) UserByPhone(ctx context.Context, phone string) (*ledger.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phone %s: %w", phone, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("read user by phone: %w", err)
	}
	return u, nil
}

// UserByID returns common.ErrUserNotFound for unknown ids.
func (s *Store) UserByID(ctx context.Context, id int64) (*ledger.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("read user: %w", err)
	}
	return u, nil
}

// MarkIntroSeen flips has_seen_intro; repeat calls are no-ops.
func (s *Store) MarkIntroSeen(ctx context.Context, id int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET has_seen_intro = TRUE, updated_at = NOW() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("mark intro seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, common.ErrUserNotFound)
	}
	return nil
}

// AddCredits appends the transaction row and increments the balance
// atomically. A missing user rolls the transaction insert back too.
func (s *Store) AddCredits(ctx context.Context, userID int64, amount int, op ledger.OperationType, metadata string) (*ledger.User, *ledger.CreditTransaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ct ledger.CreditTransaction
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (user_id, credits_amount, operation_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, credits_amount, operation_type, metadata, created_at
	`, userID, amount, op, metadata).Scan(
		&ct.ID, &ct.UserID, &ct.Amount, &ct.Type, &ct.Metadata, &ct.CreatedAt,
	)
	if err != nil {
		if isPgErr(err, pgForeignKeyViolation) {
			return nil, nil, fmt.Errorf("user %d: %w", userID, common.ErrUserNotFound)
		}
		return nil, nil, fmt.Errorf("record credit transaction: %w", err)
	}

	u, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET credits_remaining = credits_remaining + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, amount,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("user %d: %w", userID, common.ErrUserNotFound)
		}
		return nil, nil, fmt.Errorf("apply credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return u, &ct, nil
}

// ReferralCreditTotal sums the user's referral-typed transactions.
func (s *Store) ReferralCreditTotal(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return referralTotal(ctx, s.db, userID)
}

// referralTotal runs against either the pool or an open transaction so
// redemptions can evaluate the cap fresh inside their own transaction.
func referralTotal(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, userID int64) (int, error) {
	var total int
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(credits_amount), 0)
		FROM credit_transactions
		WHERE user_id = $1 AND operation_type IN ($2, $3)
	`, userID, ledger.OpReferralBonus, ledger.OpReferralReceived).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum referral credits: %w", err)
	}
	return total, nil
}

// TransactionsByUser returns the newest transactions first.
func (s *Store) TransactionsByUser(ctx context.Context, userID int64, limit int) ([]*ledger.CreditTransaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, credits_amount, operation_type, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.CreditTransaction
	for rows.Next() {
		var ct ledger.CreditTransaction
		if err := rows.Scan(&ct.ID, &ct.UserID, &ct.Amount, &ct.Type, &ct.Metadata, &ct.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, &ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return out, nil
}

// AssignReferralCode sets the code where none is set yet. The UNIQUE index
// on referral_code enforces global uniqueness; a collision surfaces as
// common.ErrReferralCodeTaken so the generator can retry with a fresh code.
func (s *Store) AssignReferralCode(ctx context.Context, userID int64, code string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET referral_code = $2, referral_code_uses = 0, updated_at = NOW()
		WHERE id = $1 AND referral_code IS NULL
	`, userID, code)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return fmt.Errorf("code %s: %w", code, common.ErrReferralCodeTaken)
		}
		return fmt.Errorf("assign referral code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the user is unknown or a code is already set.
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return fmt.Errorf("user %d: %w", userID, common.ErrUserNotFound)
		}
		return common.ErrReferralCodeSet
	}
	return nil
}

// RedeemReferralCode runs the whole redemption protocol in one transaction.
// Validation order: code existence → maxed-out → self-referral →
// already-referred → cap clamping; each failure short-circuits before any
// mutation. Both user rows are locked in ascending-id order, and headroom is
// evaluated after the locks are held, so two concurrent redemptions cannot
// both pass the cap check.
func (s *Store) RedeemReferralCode(ctx context.Context, code string, refereeID int64) (*ledger.Redemption, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE referral_code = $1`, code,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ledger.Redemption{Outcome: ledger.RedeemInvalidCode}, nil
		}
		return nil, fmt.Errorf("look up code owner: %w", err)
	}

	if ownerID == refereeID {
		// Maxed-out takes precedence over self-referral in the reported
		// outcome, so the owner row still has to be inspected.
		owner, err := scanUser(tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, ownerID,
		))
		if err != nil {
			return nil, fmt.Errorf("lock code owner: %w", err)
		}
		if owner.ReferralCodeUses >= ledger.ReferralCodeMaxUses {
			return &ledger.Redemption{Outcome: ledger.RedeemCodeMaxedOut, Referrer: owner}, nil
		}
		return &ledger.Redemption{Outcome: ledger.RedeemSelfReferral}, nil
	}

	// Lock both rows in ascending-id order so two redemptions touching the
	// same pair of users cannot deadlock.
	rows, err := tx.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		[]int64{ownerID, refereeID},
	)
	if err != nil {
		return nil, fmt.Errorf("lock users: %w", err)
	}
	var owner, referee *ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan locked user: %w", err)
		}
		switch u.ID {
		case ownerID:
			owner = u
		case refereeID:
			referee = u
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock users: %w", err)
	}
	if referee == nil {
		return nil, fmt.Errorf("user %d: %w", refereeID, common.ErrUserNotFound)
	}
	if owner == nil || owner.ReferralCode == nil || *owner.ReferralCode != code {
		// The code moved between the lookup and the lock.
		return &ledger.Redemption{Outcome: ledger.RedeemInvalidCode}, nil
	}

	if owner.ReferralCodeUses >= ledger.ReferralCodeMaxUses {
		return &ledger.Redemption{Outcome: ledger.RedeemCodeMaxedOut, Referrer: owner}, nil
	}

	var pairExists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM referrals WHERE referrer_id = $1 AND referee_id = $2)
	`, ownerID, refereeID).Scan(&pairExists)
	if err != nil {
		return nil, fmt.Errorf("check referral pair: %w", err)
	}
	if pairExists {
		return &ledger.Redemption{Outcome: ledger.RedeemAlreadyReferred, Referrer: owner}, nil
	}

	// Headroom is read under the row locks so it is fresh for this commit.
	referrerTotal, err := referralTotal(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	refereeTotal, err := referralTotal(ctx, tx, refereeID)
	if err != nil {
		return nil, err
	}
	referrerGrant := ledger.ClampReferralGrant(referrerTotal)
	refereeGrant := ledger.ClampReferralGrant(refereeTotal)

	_, err = tx.Exec(ctx, `
		INSERT INTO referrals (referrer_id, referee_id, referrer_credits, referee_credits)
		VALUES ($1, $2, $3, $4)
	`, ownerID, refereeID, referrerGrant, refereeGrant)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			// Lost a pair-uniqueness race; treat as the earlier redemption.
			return &ledger.Redemption{Outcome: ledger.RedeemAlreadyReferred, Referrer: owner}, nil
		}
		return nil, fmt.Errorf("record referral: %w", err)
	}

	updatedOwner, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET referral_code_uses = referral_code_uses + 1,
		    credits_remaining = credits_remaining + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		ownerID, referrerGrant,
	))
	if err != nil {
		return nil, fmt.Errorf("credit referrer: %w", err)
	}
	if referrerGrant > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO credit_transactions (user_id, credits_amount, operation_type, metadata)
			VALUES ($1, $2, $3, $4)
		`, ownerID, referrerGrant, ledger.OpReferralBonus, fmt.Sprintf("referee:%d", refereeID))
		if err != nil {
			return nil, fmt.Errorf("record referrer bonus: %w", err)
		}
	}

	updatedReferee, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET credits_remaining = credits_remaining + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		refereeID, refereeGrant,
	))
	if err != nil {
		return nil, fmt.Errorf("credit referee: %w", err)
	}
	if refereeGrant > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO credit_transactions (user_id, credits_amount, operation_type, metadata)
			VALUES ($1, $2, $3, $4)
		`, refereeID, refereeGrant, ledger.OpReferralReceived, fmt.Sprintf("referrer:%d", ownerID))
		if err != nil {
			return nil, fmt.Errorf("record referee bonus: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	usesRemaining := ledger.ReferralCodeMaxUses - updatedOwner.ReferralCodeUses
	if usesRemaining < 0 {
		usesRemaining = 0
	}
	return &ledger.Redemption{
		Outcome:             ledger.RedeemSuccess,
		Referrer:            updatedOwner,
		Referee:             updatedReferee,
		ReferrerCredits:     referrerGrant,
		RefereeCredits:      refereeGrant,
		RefereeLimitReached: refereeGrant == 0,
		CodeUsesRemaining:   usesRemaining,
	}, nil
}

// UsersNeedingCode lists users the hourly sweep should issue codes to.
func (s *Store) UsersNeedingCode(ctx context.Context) ([]*ledger.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE credits_remaining <= $1 AND free_trial_used = FALSE AND referral_code IS NULL
		ORDER BY id
	`, ledger.LowBalanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("find users needing code: %w", err)
	}
	defer rows.Close()

	var out []*ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find users needing code: %w", err)
	}
	return out, nil
}

// RecordTranscription consumes exactly one credit and appends the audit row
// atomically. The balance is read under a row lock and the consumption is
// rejected outright at zero, so the ledger can never go negative even when
// the caller skipped the pre-flight gate.
func (s *Store) RecordTranscription(ctx context.Context, p ledger.TranscriptionParams) (*ledger.Transcription, *ledger.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var credits int
	err = tx.QueryRow(ctx,
		`SELECT credits_remaining FROM users WHERE id = $1 FOR UPDATE`, p.UserID,
	).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrUserNotFound)
		}
		return nil, nil, fmt.Errorf("lock user: %w", err)
	}
	if credits <= 0 {
		return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrNoCredits)
	}

	u, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET credits_remaining = credits_remaining - 1,
		    usage_count = usage_count + 1,
		    total_seconds = total_seconds + $2,
		    free_trial_used = free_trial_used OR (credits_remaining - 1 <= 0),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		p.UserID, p.AudioSeconds,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("consume credit: %w", err)
	}

	var rec ledger.Transcription
	err = tx.QueryRow(ctx, `
		INSERT INTO transcriptions (user_id, audio_seconds, word_count, stt_cost, delivery_cost, total_cost)
		VALUES ($1, $2, $3, $4, $5, $4 + $5)
		RETURNING id, user_id, audio_seconds, word_count, stt_cost, delivery_cost, total_cost, created_at
	`, p.UserID, p.AudioSeconds, p.WordCount, p.STTCost, p.DeliveryCost).Scan(
		&rec.ID, &rec.UserID, &rec.AudioSeconds, &rec.WordCount,
		&rec.STTCost, &rec.DeliveryCost, &rec.TotalCost, &rec.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("record transcription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return &rec, u, nil
}

// RecordPayment appends the payment row and grants the purchased credits in
// one transaction.
func (s *Store) RecordPayment(ctx context.Context, p ledger.PaymentParams) (*ledger.Payment, *ledger.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var pay ledger.Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (user_id, amount, currency, credits_purchased, payment_method, provider_tx_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, amount, currency, credits_purchased, payment_method, provider_tx_id, created_at
	`, p.UserID, p.Amount, p.Currency, p.Credits, p.Method, p.ProviderTxID).Scan(
		&pay.ID, &pay.UserID, &pay.Amount, &pay.Currency,
		&pay.Credits, &pay.Method, &pay.ProviderTxID, &pay.CreatedAt,
	)
	if err != nil {
		if isPgErr(err, pgForeignKeyViolation) {
			return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrUserNotFound)
		}
		return nil, nil, fmt.Errorf("record payment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_transactions (user_id, credits_amount, operation_type, metadata)
		VALUES ($1, $2, $3, $4)
	`, p.UserID, p.Credits, ledger.OpPayment, fmt.Sprintf("payment:%s", p.ProviderTxID))
	if err != nil {
		return nil, nil, fmt.Errorf("record payment transaction: %w", err)
	}

	u, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET credits_remaining = credits_remaining + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		p.UserID, p.Credits,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("user %d: %w", p.UserID, common.ErrUserNotFound)
		}
		return nil, nil, fmt.Errorf("apply purchased credits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return &pay, u, nil
}

// Stats returns aggregate counts for the daily operational log line.
func (s *Store) Stats(ctx context.Context) (*ledger.Stats, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var st ledger.Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM transcriptions),
			(SELECT COUNT(*) FROM referrals),
			(SELECT COUNT(*) FROM payments),
			(SELECT COALESCE(SUM(credits_remaining), 0) FROM users)
	`).Scan(&st.Users, &st.Transcriptions, &st.Referrals, &st.Payments, &st.CreditsInFlight)
	if err != nil {
		return nil, fmt.Errorf("read ledger stats: %w", err)
	}
	return &st, nil
}
