package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus of a granted credit. Overdue is only reached through an external
// time-based process; cancelled marks a grant whose funds were never delivered.
type CreditStatus string

const (
	CreditActive    CreditStatus = "active"
	CreditPaid      CreditStatus = "paid"
	CreditOverdue   CreditStatus = "overdue"
	CreditCancelled CreditStatus = "cancelled"
)

// CreditTerm is the repayment window granted on apply.
const CreditTerm = 1 // months

// Credit Model
type Credit struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string          `gorm:"type:varchar(36);index;not null" json:"userId"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status    CreditStatus    `gorm:"type:varchar(16);not null;default:active" json:"status"`
	DueDate   time.Time       `gorm:"not null" json:"dueDate"`
	SagaID    string          `gorm:"type:varchar(36);index" json:"-"`
	PaidBy    string          `gorm:"type:varchar(36)" json:"-"` // Repayment saga that settled it
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DueDateFrom returns the repayment deadline for a credit granted at t.
func DueDateFrom(t time.Time) time.Time {
	return t.AddDate(0, CreditTerm, 0)
}
