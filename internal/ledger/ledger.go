// Package ledger owns wallet balances. Every mutation is a single conditional
// UPDATE plus a ledger entry written in the same transaction; nothing reads a
// balance and writes a computed value back.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"wallet_saga/internal/domain"
	"wallet_saga/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Ledger is the gorm backed WalletLedger.
type Ledger struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// New creates a Ledger over db. db should be opened with TranslateError so
// duplicate idempotency keys surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, log: logrus.WithField("component", "ledger")}
}

// Create opens a zero-balance wallet for userID.
func (l *Ledger) Create(ctx context.Context, userID string) (*domain.Wallet, error) {
	if err := domain.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	wallet := &domain.Wallet{ID: uuid.NewString(), UserID: userID, Balance: decimal.Zero}
	if err := l.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: wallet already exists for user %s", domain.ErrConflict, userID)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	l.log.WithFields(logrus.Fields{"user_id": userID, "wallet_id": wallet.ID}).Info("Wallet created")
	return wallet, nil
}

// Wallet returns the wallet of userID.
func (l *Ledger) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return findWallet(l.db.WithContext(ctx), userID)
}

// Balance returns the current balance of userID.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := l.Wallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// Credit atomically adds amount. A repeated key returns the recorded balance.
func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, key string) (decimal.Decimal, error) {
	bal, err := l.apply(ctx, userID, key, domain.EntryCredit, amount)
	l.observe("credit", err)
	return bal, err
}

// Debit atomically subtracts amount only if the balance covers it; otherwise
// nothing changes and ErrInsufficientFunds is returned.
func (l *Ledger) Debit(ctx context.Context, userID string, amount decimal.Decimal, key string) (decimal.Decimal, error) {
	bal, err := l.apply(ctx, userID, key, domain.EntryDebit, amount)
	l.observe("debit", err)
	return bal, err
}

// Reverse undoes the entry recorded under key, at most once. When no entry
// exists yet the key is voided, so a late original request becomes a no-op.
// reversed reports whether funds actually moved back.
func (l *Ledger) Reverse(ctx context.Context, userID, key string) (balance decimal.Decimal, reversed bool, err error) {
	defer func() { l.observe("reverse", err) }()
	if err = validateKey(userID, key); err != nil {
		return decimal.Zero, false, err
	}
	reverseKey := key + ":reverse"
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orig, found, err := findEntry(tx, key)
		if err != nil {
			return err
		}
		if !found {
			w, err := findWallet(tx, userID)
			if err != nil {
				return err
			}
			balance = w.Balance
			return tx.Create(&domain.LedgerEntry{
				ID: uuid.NewString(), IdempotencyKey: key, UserID: userID,
				Kind: domain.EntryVoid, Amount: decimal.Zero, BalanceAfter: w.Balance,
			}).Error
		}
		if orig.UserID != userID {
			return fmt.Errorf("%w: key %s belongs to another wallet", domain.ErrConflict, key)
		}
		switch orig.Kind {
		case domain.EntryVoid:
			w, err := findWallet(tx, userID)
			if err != nil {
				return err
			}
			balance = w.Balance
			return nil
		case domain.EntryReverse:
			return fmt.Errorf("%w: key %s is itself a reversal", domain.ErrValidation, key)
		}
		if orig.ReversedBy != nil {
			prev, _, err := findEntry(tx, *orig.ReversedBy)
			if err != nil {
				return err
			}
			balance, reversed = prev.BalanceAfter, true
			return nil
		}
		// Undo: a debit is credited back, a credit is debited back if still covered.
		undo := domain.EntryCredit
		if orig.Kind == domain.EntryCredit {
			undo = domain.EntryDebit
		}
		if balance, err = mutate(tx, userID, undo, orig.Amount); err != nil {
			return err
		}
		if err := tx.Create(&domain.LedgerEntry{
			ID: uuid.NewString(), IdempotencyKey: reverseKey, UserID: userID,
			Kind: domain.EntryReverse, Amount: orig.Amount, BalanceAfter: balance,
		}).Error; err != nil {
			return err
		}
		reversed = true
		return tx.Model(&domain.LedgerEntry{}).Where("id = ?", orig.ID).Update("reversed_by", reverseKey).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent reverse of the same key won; report its result.
		return l.replayReverse(ctx, key)
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	l.log.WithFields(logrus.Fields{"user_id": userID, "key": key, "reversed": reversed, "balance": balance}).Info("Reverse applied")
	return balance, reversed, nil
}

// Entries lists the ledger entries of userID, newest first.
func (l *Ledger) Entries(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	db := l.db.WithContext(ctx)
	if err := db.Model(&domain.LedgerEntry{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}
	var entries []domain.LedgerEntry
	if err := db.Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return entries, total, nil
}

func (l *Ledger) apply(ctx context.Context, userID, key string, kind domain.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateKey(userID, key); err != nil {
		return decimal.Zero, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, found, err := findEntry(tx, key) // Deduplicate by idempotency key
		if err != nil {
			return err
		}
		if found {
			balance, err = replayed(prev, userID, kind, amount) // Answer from the recorded entry
			return err
		}
		if balance, err = mutate(tx, userID, kind, amount); err != nil { // Conditional update, no read-modify-write
			return err
		}
		return tx.Create(&domain.LedgerEntry{ // Entry commits with the balance or not at all
			ID: uuid.NewString(), IdempotencyKey: key, UserID: userID,
			Kind: kind, Amount: amount, BalanceAfter: balance,
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the insert race to a request with the same key; our update was rolled back.
		prev, found, ferr := findEntry(l.db.WithContext(ctx), key)
		if ferr != nil || !found {
			return decimal.Zero, fmt.Errorf("replay %s: %w", key, err)
		}
		return replayed(prev, userID, kind, amount)
	}
	if err != nil {
		return decimal.Zero, err
	}
	l.log.WithFields(logrus.Fields{
		"user_id": userID, "kind": kind, "amount": amount, "key": key, "balance": balance,
	}).Info("Ledger entry applied")
	return balance, nil
}

// mutate performs the single atomic conditional update and returns the new balance.
func mutate(tx *gorm.DB, userID string, kind domain.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	var res *gorm.DB
	switch kind {
	case domain.EntryCredit:
		res = tx.Model(&domain.Wallet{}).Where("user_id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount))
	case domain.EntryDebit:
		res = tx.Model(&domain.Wallet{}).Where("user_id = ? AND balance >= ?", userID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported entry kind %s", domain.ErrValidation, kind)
	}
	if res.Error != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := findWallet(tx, userID); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: cannot debit %s", domain.ErrInsufficientFunds, amount.StringFixed(2))
	}
	w, err := findWallet(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// replayed validates that a stored entry matches the repeated request.
func replayed(prev *domain.LedgerEntry, userID string, kind domain.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case prev.UserID != userID:
		return decimal.Zero, fmt.Errorf("%w: key %s belongs to another wallet", domain.ErrConflict, prev.IdempotencyKey)
	case prev.Kind == domain.EntryVoid:
		return decimal.Zero, fmt.Errorf("%w: request %s was cancelled", domain.ErrConflict, prev.IdempotencyKey)
	case prev.ReversedBy != nil:
		// The effect was undone; reporting the old balance would claim money moved.
		return decimal.Zero, fmt.Errorf("%w: request %s was reversed", domain.ErrConflict, prev.IdempotencyKey)
	case prev.Kind != kind || !prev.Amount.Equal(amount):
		return decimal.Zero, fmt.Errorf("%w: key %s reused with different parameters", domain.ErrConflict, prev.IdempotencyKey)
	}
	return prev.BalanceAfter, nil
}

func (l *Ledger) replayReverse(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	prev, found, err := findEntry(l.db.WithContext(ctx), key+":reverse")
	if err != nil {
		return decimal.Zero, false, err
	}
	if found {
		return prev.BalanceAfter, true, nil
	}
	orig, found, err := findEntry(l.db.WithContext(ctx), key)
	if err != nil || !found {
		return decimal.Zero, false, fmt.Errorf("replay reverse %s: %w", key, domain.ErrConflict)
	}
	return orig.BalanceAfter, false, nil
}

func (l *Ledger) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = domain.Code(err)
	}
	metrics.LedgerOps.WithLabelValues(op, result).Inc()
}

func findWallet(tx *gorm.DB, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := tx.Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: wallet for user %s", domain.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	return &w, nil
}

func findEntry(tx *gorm.DB, key string) (*domain.LedgerEntry, bool, error) {
	var e domain.LedgerEntry
	err := tx.Where("idempotency_key = ?", key).Limit(1).Find(&e).Error
	if err != nil {
		return nil, false, fmt.Errorf("find entry: %w", err)
	}
	return &e, e.ID != "", nil
}

func validateKey(userID, key string) error {
	if err := domain.ValidateID("userId", userID); err != nil {
		return err
	}
	return domain.ValidateID("idempotency key", key)
}
