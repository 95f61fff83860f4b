package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet Model
type Wallet struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`                // Primary key
	UserID    string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"userId"`  // One wallet per user
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"` // Never negative
	CreatedAt time.Time       `json:"createdAt"`                                            // Creation time
	UpdatedAt time.Time       `json:"updatedAt"`                                            // Last balance mutation
}
