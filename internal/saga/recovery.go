package saga

import (
	"context"
	"errors"
	"time"

	"wallet_saga/internal/domain"
	"wallet_saga/internal/gateway"
	"wallet_saga/internal/store"

	"github.com/sirupsen/logrus"
)

const recoveryBatch = 100

var errRetriedRefund = errors.New("refund retried after a failed compensation")

// Recoverer drives sagas abandoned mid-flight, by a crash or a lost
// request, to a terminal state.
type Recoverer struct {
	sagas   *store.Sagas
	payment *PaymentSaga
	credit  *CreditSaga
	grace   time.Duration
	log     logrus.FieldLogger
}

// NewRecoverer builds a Recoverer. payment or credit may be nil when the
// hosting service does not own that saga kind.
func NewRecoverer(sagas *store.Sagas, grace time.Duration, payment *PaymentSaga, credit *CreditSaga) *Recoverer {
	return &Recoverer{sagas: sagas, payment: payment, credit: credit, grace: grace, log: logrus.WithField("component", "recoverer")}
}

// Start runs RunOnce immediately and then every interval until ctx is done.
func (r *Recoverer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.WithError(err).Warn("Recovery pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce resolves the stale sagas currently in the log and reports how
// many reached a terminal state.
func (r *Recoverer) RunOnce(ctx context.Context) (int, error) {
	stale, err := r.sagas.Stale(ctx, time.Now().Add(-r.grace), recoveryBatch)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range stale {
		rec := &stale[i]
		r.log.WithFields(logrus.Fields{"saga_id": rec.ID, "saga": rec.Kind, "state": rec.State}).Info("Recovering saga")
		switch rec.Kind {
		case domain.SagaPayment:
			if r.payment == nil {
				continue
			}
			r.payment.recover(ctx, rec)
		case domain.SagaCreditApply:
			if r.credit == nil {
				continue
			}
			r.credit.recoverApply(ctx, rec)
		case domain.SagaCreditRepay:
			if r.credit == nil {
				continue
			}
			r.credit.recoverRepay(ctx, rec)
		}
		if rec.State.Terminal() {
			resolved++
		}
	}
	return resolved, nil
}

func (s *PaymentSaga) recover(ctx context.Context, rec *domain.SagaRecord) {
	switch rec.State {
	case domain.SagaSettled:
		_, _ = s.complete(ctx, rec, rec.ExternalRef)
		return
	case domain.SagaCompensationFailed:
		// The refund was already decided; only the reversal is retried.
		_, _ = s.refund(ctx, rec, errRetriedRefund)
		return
	}
	// The log may lag behind the bank, so ask it whatever the recorded state.
	res, err := s.gateway.Lookup(ctx, rec.ID)
	switch {
	case err == nil:
		_, _ = s.complete(ctx, rec, res.ExternalRef)
	case errors.Is(err, gateway.ErrUnknownReference):
		_, _ = s.refund(ctx, rec, errors.New("abandoned before settlement"))
	default:
		s.entry(rec).WithError(err).Warn("Settlement lookup failed")
	}
}

func (s *CreditSaga) recoverApply(ctx context.Context, rec *domain.SagaRecord) {
	if rec.State == domain.SagaCredited {
		s.notify.Send(ctx, rec.UserID, domain.CreditGrantedNotice(rec.Amount))
		s.finish(ctx, rec, domain.SagaCompleted, nil)
		return
	}
	if err := s.reverse(ctx, rec, stepCredit); err != nil {
		_ = s.escalate(ctx, rec, stepCredit, err)
		return
	}
	credit, found, err := s.credits.BySaga(ctx, rec.ID)
	switch {
	case err != nil:
		s.entry(rec).WithError(err).Warn("Credit lookup failed")
	case found && credit.Status == domain.CreditActive:
		if _, err := s.credits.Transition(ctx, credit.ID, domain.CreditActive, domain.CreditCancelled); err != nil {
			s.entry(rec).WithError(err).Warn("Credit could not be cancelled")
		}
	}
	s.finish(ctx, rec, domain.SagaCompensated, errors.New("abandoned before wallet credit"))
}

func (s *CreditSaga) recoverRepay(ctx context.Context, rec *domain.SagaRecord) {
	credit, err := s.credits.Get(ctx, rec.RefID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.entry(rec).WithError(err).Warn("Credit lookup failed")
		return
	}
	if credit != nil && credit.PaidBy == rec.ID {
		s.finish(ctx, rec, domain.SagaCompleted, nil)
		return
	}
	if err := s.reverse(ctx, rec, stepDebit); err != nil {
		_ = s.escalate(ctx, rec, stepDebit, err)
		return
	}
	s.finish(ctx, rec, domain.SagaCompensated, errors.New("abandoned before credit was marked paid"))
}
