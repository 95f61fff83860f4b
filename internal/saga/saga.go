// Package saga orchestrates the multi-step money movements. Each saga writes
// its intent to the saga log before the first side effect, advances the log
// after every step and, on failure, undoes committed steps through
// Ledger.Reverse. A failed undo is escalated as a *domain.CompensationError.
package saga

import (
	"context"
	"errors"
	"time"

	"wallet_saga/internal/domain"
	"wallet_saga/internal/metrics"
	"wallet_saga/internal/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Ledger is the wallet surface sagas mutate, local or remote.
type Ledger interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, key string) (decimal.Decimal, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, key string) (decimal.Decimal, error)
	Reverse(ctx context.Context, userID, key string) (decimal.Decimal, bool, error)
}

// Notifier delivers user notifications.
type Notifier interface {
	Send(ctx context.Context, userID, title, message string) error
}

// Notify sends best-effort notifications. Failures are logged and counted,
// never returned.
type Notify struct {
	sink    Notifier
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewNotify wraps sink; a nil sink drops everything.
func NewNotify(sink Notifier, timeout time.Duration) *Notify {
	return &Notify{sink: sink, timeout: timeout, log: logrus.WithField("component", "notify")}
}

// Send delivers n to userID within the configured timeout.
func (n *Notify) Send(ctx context.Context, userID string, notice domain.Notice) {
	if n == nil || n.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.sink.Send(ctx, userID, notice.Title, notice.Message); err != nil {
		metrics.NotificationsDropped.Inc()
		n.log.WithFields(logrus.Fields{"user_id": userID, "title": notice.Title, "error": err.Error()}).Warn("Notification dropped")
	}
}

// runner holds what every saga kind shares: the log and the ledger.
type runner struct {
	sagas  *store.Sagas
	ledger Ledger
	log    logrus.FieldLogger
}

func (r *runner) entry(rec *domain.SagaRecord) *logrus.Entry {
	return r.log.WithFields(logrus.Fields{
		"saga_id": rec.ID, "saga": rec.Kind, "user_id": rec.UserID, "amount": rec.Amount,
	})
}

// advance persists progress. A failed write is logged; the recoverer
// picks the record up from its last persisted state.
func (r *runner) advance(ctx context.Context, rec *domain.SagaRecord, state domain.SagaState) {
	if err := r.sagas.Advance(ctx, rec, state); err != nil {
		r.entry(rec).WithError(err).Warn("Saga log write failed")
		rec.State = state
		return
	}
	r.entry(rec).WithField("state", state).Debug("Saga advanced")
}

// finish moves rec to a terminal state and records the outcome.
func (r *runner) finish(ctx context.Context, rec *domain.SagaRecord, state domain.SagaState, cause error) {
	if cause != nil {
		rec.LastError = cause.Error()
	}
	r.advance(ctx, rec, state)
	metrics.SagaOutcomes.WithLabelValues(string(rec.Kind), string(state)).Inc()
	e := r.entry(rec).WithField("state", state)
	if cause != nil {
		e = e.WithField("cause", cause.Error())
	}
	e.Info("Saga finished")
}

// reverse undoes the ledger step recorded under rec.StepKey(step).
func (r *runner) reverse(ctx context.Context, rec *domain.SagaRecord, step string) error {
	bal, reversed, err := r.ledger.Reverse(ctx, rec.UserID, rec.StepKey(step))
	if err != nil {
		return err
	}
	r.entry(rec).WithFields(logrus.Fields{"step": step, "reversed": reversed, "balance": bal}).Info("Saga step reversed")
	return nil
}

// escalate records a failed compensation. This is the operator alert.
func (r *runner) escalate(ctx context.Context, rec *domain.SagaRecord, step string, cause error) error {
	cerr := &domain.CompensationError{SagaID: rec.ID, Step: step, Cause: cause}
	retry := rec.State == domain.SagaCompensationFailed
	rec.LastError = cerr.Error()
	r.advance(ctx, rec, domain.SagaCompensationFailed) // Left open, the recoverer retries the undo
	if !retry {
		metrics.SagaOutcomes.WithLabelValues(string(rec.Kind), string(domain.SagaCompensationFailed)).Inc()
	}
	metrics.CompensationFailures.WithLabelValues(string(rec.Kind), step).Inc()
	r.entry(rec).WithFields(logrus.Fields{"step": step, "alert": true, "retry": retry, "error": cause.Error()}).
		Error("Compensation failed, manual reconciliation required")
	return cerr
}

// refused reports whether the ledger answered definitively that nothing
// was applied, so no reversal is needed.
func refused(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict)
}
