package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryCredit  EntryKind = "credit"  // Balance increased
	EntryDebit   EntryKind = "debit"   // Balance decreased
	EntryReverse EntryKind = "reverse" // Undo of another entry
	EntryVoid    EntryKind = "void"    // Tombstone for a key that was reversed before it was applied
)

// LedgerEntry records one applied mutation. IdempotencyKey is unique: a repeated
// request with the same key returns the recorded result instead of re-applying.
type LedgerEntry struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`             // Primary key
	IdempotencyKey string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"key"` // Caller supplied key
	UserID         string          `gorm:"type:varchar(36);index;not null" json:"userId"`     // Wallet owner
	Kind           EntryKind       `gorm:"type:varchar(16);not null" json:"kind"`             // credit, debit, reverse, void
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`         // Always >= 0
	BalanceAfter   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balanceAfter"`   // Balance right after this entry
	ReversedBy     *string         `gorm:"type:varchar(128)" json:"reversedBy,omitempty"`     // Key of the reversing entry
	CreatedAt      time.Time       `gorm:"index" json:"createdAt"`                            // Timestamp of creation
}
