package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is pending until the saga moves it, exactly once, to success or failed.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Known payment methods. The set is open; see ValidateMethod.
const (
	MethodQRIS     = "qris"
	MethodTransfer = "transfer"
)

// Payment Model
type Payment struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string          `gorm:"type:varchar(36);index;not null" json:"userId"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method      string          `gorm:"type:varchar(32);not null" json:"method"`
	Status      PaymentStatus   `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	ExternalRef *string         `gorm:"type:varchar(128)" json:"externalRef,omitempty"` // Set only on success
	SagaID      string          `gorm:"type:varchar(36);index" json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
