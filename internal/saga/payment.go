package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet_saga/internal/domain"
	"wallet_saga/internal/gateway"
	"wallet_saga/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const stepDebit = "debit"

// PaymentSaga spends wallet money through the settlement gateway.
type PaymentSaga struct {
	runner
	payments       *store.Payments
	gateway        gateway.Gateway
	gatewayTimeout time.Duration
	notify         *Notify
}

// PaymentOptions wires a PaymentSaga.
type PaymentOptions struct {
	Ledger         Ledger
	Gateway        gateway.Gateway
	Payments       *store.Payments
	Sagas          *store.Sagas
	Notify         *Notify
	GatewayTimeout time.Duration
}

// NewPaymentSaga builds the payment saga.
func NewPaymentSaga(opts PaymentOptions) *PaymentSaga {
	return &PaymentSaga{
		runner:         runner{sagas: opts.Sagas, ledger: opts.Ledger, log: logrus.WithField("component", "payment_saga")},
		payments:       opts.Payments,
		gateway:        opts.Gateway,
		gatewayTimeout: opts.GatewayTimeout,
		notify:         opts.Notify,
	}
}

// Pay debits the wallet, settles with the gateway and finalises the payment.
// A refused debit returns its error with no payment created. A failed or
// timed out settlement refunds the debit and returns the failed payment
// together with an error wrapping domain.ErrDependencyUnavailable.
func (s *PaymentSaga) Pay(ctx context.Context, userID string, amount decimal.Decimal, method string) (*domain.Payment, error) {
	if err := domain.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateMethod(method); err != nil {
		return nil, err
	}

	rec := &domain.SagaRecord{
		ID: uuid.NewString(), Kind: domain.SagaPayment, UserID: userID,
		Amount: amount, Method: method, RefID: uuid.NewString(),
	}
	if err := s.sagas.Begin(ctx, rec); err != nil { // Intent is durable before money moves
		return nil, err
	}
	// From here on money may move; the saga runs to a terminal state even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	log := s.entry(rec)

	if _, err := s.ledger.Debit(ctx, userID, amount, rec.StepKey(stepDebit)); err != nil {
		if refused(err) {
			s.finish(ctx, rec, domain.SagaAborted, err)
			return nil, err
		}
		// Outcome unknown: the debit may or may not have landed.
		if rerr := s.reverse(ctx, rec, stepDebit); rerr != nil {
			return nil, s.escalate(ctx, rec, stepDebit, rerr)
		}
		s.finish(ctx, rec, domain.SagaCompensated, err)
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	s.advance(ctx, rec, domain.SagaDebited) // Recovery now owes a refund or a settlement
	log.Info("Wallet debited")

	payment := &domain.Payment{ID: rec.RefID, UserID: userID, Amount: amount, Method: method, SagaID: rec.ID}
	if err := s.payments.Create(ctx, payment); err != nil {
		if rerr := s.reverse(ctx, rec, stepDebit); rerr != nil {
			return nil, s.escalate(ctx, rec, stepDebit, rerr)
		}
		s.finish(ctx, rec, domain.SagaCompensated, err)
		return nil, err
	}
	s.advance(ctx, rec, domain.SagaSettling)

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout) // The bank gets its own bound
	res, err := s.gateway.Settle(gctx, gateway.Request{Reference: rec.ID, UserID: userID, Amount: amount, Method: method})
	cancel()
	if err != nil {
		log.WithError(err).Warn("Settlement failed, refunding")
		return s.refund(ctx, rec, err)
	}
	return s.complete(ctx, rec, res.ExternalRef)
}

// History lists a user's payments.
func (s *PaymentSaga) History(ctx context.Context, userID string) ([]domain.Payment, error) {
	if err := domain.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	return s.payments.ListByUser(ctx, userID)
}

// complete marks a settled payment successful and notifies the user.
func (s *PaymentSaga) complete(ctx context.Context, rec *domain.SagaRecord, externalRef string) (*domain.Payment, error) {
	rec.ExternalRef = externalRef
	s.advance(ctx, rec, domain.SagaSettled)
	payment, err := s.payments.Finish(ctx, rec.RefID, domain.PaymentSuccess, &externalRef)
	if err != nil {
		// Money and settlement are final; the recoverer retries the bookkeeping.
		s.entry(rec).WithError(err).Error("Settled payment could not be recorded")
		return payment, err
	}
	s.notify.Send(ctx, rec.UserID, domain.PaymentNotice(rec.Amount, rec.Method))
	s.finish(ctx, rec, domain.SagaCompleted, nil)
	return payment, nil
}

// refund reverses the debit, then fails the payment if one was created. When
// the reversal fails the payment stays pending and the saga is escalated.
func (s *PaymentSaga) refund(ctx context.Context, rec *domain.SagaRecord, cause error) (*domain.Payment, error) {
	if err := s.reverse(ctx, rec, stepDebit); err != nil {
		payment, _, ferr := s.payments.BySaga(ctx, rec.ID)
		if ferr != nil {
			s.entry(rec).WithError(ferr).Warn("Payment lookup failed")
		}
		if payment != nil && payment.ID == "" {
			payment = nil
		}
		return payment, s.escalate(ctx, rec, stepDebit, err)
	}
	// Money is back; only now may the user see the payment as failed.
	payment, err := s.payments.Finish(ctx, rec.RefID, domain.PaymentFailed, nil)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.entry(rec).WithError(err).Warn("Payment could not be marked failed")
	}
	s.finish(ctx, rec, domain.SagaCompensated, cause)
	if errors.Is(cause, domain.ErrDependencyUnavailable) {
		return payment, fmt.Errorf("settle payment: %w", cause)
	}
	return payment, fmt.Errorf("settle payment: %w: %w", domain.ErrDependencyUnavailable, cause)
}
