package saga

import (
	"context"
	"fmt"
	"time"

	"wallet_saga/internal/domain"
	"wallet_saga/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const stepCredit = "credit"

// CreditSaga grants credits into the wallet and settles them from it.
type CreditSaga struct {
	runner
	credits *store.Credits
	notify  *Notify
	now     func() time.Time
}

// CreditOptions wires a CreditSaga.
type CreditOptions struct {
	Ledger  Ledger
	Credits *store.Credits
	Sagas   *store.Sagas
	Notify  *Notify
}

// NewCreditSaga builds the credit saga.
func NewCreditSaga(opts CreditOptions) *CreditSaga {
	return &CreditSaga{
		runner:  runner{sagas: opts.Sagas, ledger: opts.Ledger, log: logrus.WithField("component", "credit_saga")},
		credits: opts.Credits,
		notify:  opts.Notify,
		now:     time.Now,
	}
}

// Apply records an active credit due one term from now and pays it into the
// wallet. If the wallet credit fails the grant is reversed and the credit
// cancelled.
func (s *CreditSaga) Apply(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Credit, error) {
	if err := domain.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	rec := &domain.SagaRecord{
		ID: uuid.NewString(), Kind: domain.SagaCreditApply, UserID: userID,
		Amount: amount, RefID: uuid.NewString(),
	}
	if err := s.sagas.Begin(ctx, rec); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	credit := &domain.Credit{ID: rec.RefID, UserID: userID, Amount: amount, DueDate: domain.DueDateFrom(s.now()), SagaID: rec.ID}
	if err := s.credits.Create(ctx, credit); err != nil {
		s.finish(ctx, rec, domain.SagaAborted, err)
		return nil, err
	}

	if _, err := s.ledger.Credit(ctx, userID, amount, rec.StepKey(stepCredit)); err != nil {
		if !refused(err) {
			if rerr := s.reverse(ctx, rec, stepCredit); rerr != nil {
				return credit, s.escalate(ctx, rec, stepCredit, rerr)
			}
		}
		if cancelled, cerr := s.credits.Transition(ctx, credit.ID, domain.CreditActive, domain.CreditCancelled); cerr == nil {
			credit = cancelled
		}
		if refused(err) {
			s.finish(ctx, rec, domain.SagaAborted, err)
			return credit, err
		}
		s.finish(ctx, rec, domain.SagaCompensated, err)
		return credit, fmt.Errorf("credit wallet: %w", err)
	}
	s.advance(ctx, rec, domain.SagaCredited) // Funds delivered, only the notice is left

	s.notify.Send(ctx, userID, domain.CreditGrantedNotice(amount))
	s.finish(ctx, rec, domain.SagaCompleted, nil)
	return credit, nil
}

// PayCredit repays an active credit in full from the wallet. Paying a credit
// twice, even concurrently, debits the wallet at most once.
func (s *CreditSaga) PayCredit(ctx context.Context, userID, creditID string, amount decimal.Decimal) (*domain.Credit, error) {
	if err := domain.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	if err := domain.ValidateID("creditId", creditID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	credit, err := s.credits.Get(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if credit.UserID != userID {
		return nil, fmt.Errorf("%w: credit %s", domain.ErrNotFound, creditID)
	}
	switch credit.Status {
	case domain.CreditActive, domain.CreditOverdue:
	default:
		return credit, fmt.Errorf("%w: credit %s is %s", domain.ErrConflict, creditID, credit.Status)
	}
	if !amount.Equal(credit.Amount) {
		return nil, fmt.Errorf("%w: repayment must equal the credit amount %s", domain.ErrValidation, credit.Amount.StringFixed(2))
	}

	rec := &domain.SagaRecord{
		ID: uuid.NewString(), Kind: domain.SagaCreditRepay, UserID: userID,
		Amount: amount, RefID: creditID,
	}
	if err := s.sagas.Begin(ctx, rec); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := s.ledger.Debit(ctx, userID, amount, rec.StepKey(stepDebit)); err != nil {
		if refused(err) {
			s.finish(ctx, rec, domain.SagaAborted, err)
			return nil, err
		}
		if rerr := s.reverse(ctx, rec, stepDebit); rerr != nil {
			return nil, s.escalate(ctx, rec, stepDebit, rerr)
		}
		s.finish(ctx, rec, domain.SagaCompensated, err)
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	s.advance(ctx, rec, domain.SagaDebited)

	paid, err := s.credits.MarkPaid(ctx, creditID, credit.Status, rec.ID) // Only one repayment wins this update
	if err != nil {
		// Lost the race to another repayment, or the write failed: give the money back.
		if rerr := s.reverse(ctx, rec, stepDebit); rerr != nil {
			return nil, s.escalate(ctx, rec, stepDebit, rerr)
		}
		s.finish(ctx, rec, domain.SagaCompensated, err)
		return paid, err
	}

	s.notify.Send(ctx, userID, domain.CreditPaidNotice(amount))
	s.finish(ctx, rec, domain.SagaCompleted, nil)
	return paid, nil
}

// Credits lists a user's credits.
func (s *CreditSaga) Credits(ctx context.Context, userID string) ([]domain.Credit, error) {
	if err := domain.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	return s.credits.ListByUser(ctx, userID)
}
