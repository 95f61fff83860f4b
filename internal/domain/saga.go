package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SagaKind names the multi-step operation a SagaRecord tracks.
type SagaKind string

const (
	SagaPayment     SagaKind = "payment"
	SagaCreditApply SagaKind = "credit_apply"
	SagaCreditRepay SagaKind = "credit_repay"
)

// SagaState is the durable progress marker of a saga. It is written before the
// first side effect and advanced after every step.
type SagaState string

const (
	SagaStarted            SagaState = "started"
	SagaDebited            SagaState = "debited"
	SagaCredited           SagaState = "credited"
	SagaSettling           SagaState = "settling"
	SagaSettled            SagaState = "settled"
	SagaCompleted          SagaState = "completed"
	SagaCompensated        SagaState = "compensated"
	SagaAborted            SagaState = "aborted"
	SagaCompensationFailed SagaState = "compensation_failed"
)

// Terminal reports whether the recoverer should leave the record alone.
// compensation_failed is not terminal: the recoverer keeps retrying the undo,
// alerting on every failure, until it succeeds or an operator steps in.
func (s SagaState) Terminal() bool {
	switch s {
	case SagaCompleted, SagaCompensated, SagaAborted:
		return true
	}
	return false
}

// TerminalSagaStates lists the states a record never leaves.
var TerminalSagaStates = []SagaState{SagaCompleted, SagaCompensated, SagaAborted}

// NonTerminalSagaStates lists the states the recoverer scans for.
var NonTerminalSagaStates = []SagaState{
	SagaStarted, SagaDebited, SagaCredited, SagaSettling, SagaSettled, SagaCompensationFailed,
}

// SagaRecord Model
type SagaRecord struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Kind        SagaKind        `gorm:"type:varchar(32);not null;index" json:"kind"`
	UserID      string          `gorm:"type:varchar(36);not null;index" json:"userId"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method      string          `gorm:"type:varchar(32)" json:"method,omitempty"`
	RefID       string          `gorm:"type:varchar(36)" json:"refId,omitempty"` // Payment or credit id
	ExternalRef string          `gorm:"type:varchar(128)" json:"externalRef,omitempty"`
	State       SagaState       `gorm:"type:varchar(32);not null;index" json:"state"`
	LastError   string          `gorm:"type:text" json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"index" json:"updatedAt"`
}

// StepKey derives the idempotency key of a saga step. Keys are stable across
// retries and restarts so the ledger can deduplicate and reverse them.
func (r *SagaRecord) StepKey(step string) string {
	return r.ID + ":" + step
}
