package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet_saga/internal/config"
	"wallet_saga/internal/db"
	"wallet_saga/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T, service string) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory(uuid.NewString(), service)
	require.NoError(t, err)
	return gdb
}

func TestPaymentFinishesOnce(t *testing.T) {
	s := NewPayments(openDB(t, config.ServicePayment))
	ctx := context.Background()
	p := &domain.Payment{ID: uuid.NewString(), UserID: "u1", Amount: decimal.NewFromInt(1000), Method: domain.MethodQRIS, SagaID: "s1"}
	require.NoError(t, s.Create(ctx, p))
	assert.Equal(t, domain.PaymentPending, p.Status)

	ref := "BNI-1"
	done, err := s.Finish(ctx, p.ID, domain.PaymentSuccess, &ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, done.Status)
	require.NotNil(t, done.ExternalRef)
	assert.Equal(t, ref, *done.ExternalRef)

	// Same transition again is a no-op, a different one is refused.
	_, err = s.Finish(ctx, p.ID, domain.PaymentSuccess, &ref)
	assert.NoError(t, err)
	_, err = s.Finish(ctx, p.ID, domain.PaymentFailed, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.Finish(ctx, p.ID, domain.PaymentPending, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, found, err := s.BySaga(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, p.ID, got.ID)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreditTransitionIsConditional(t *testing.T) {
	s := NewCredits(openDB(t, config.ServiceCredit))
	ctx := context.Background()
	c := &domain.Credit{ID: uuid.NewString(), UserID: "u1", Amount: decimal.NewFromInt(500000), DueDate: domain.DueDateFrom(time.Now())}
	require.NoError(t, s.Create(ctx, c))

	var won int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.MarkPaid(ctx, c.ID, domain.CreditActive, uuid.NewString()); err == nil {
				atomic.AddInt32(&won, 1)
			} else {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CreditPaid, got.Status)
	assert.NotEmpty(t, got.PaidBy)

	_, err = s.Transition(ctx, c.ID, domain.CreditActive, domain.CreditCancelled)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, found, err := s.BySaga(ctx, "none")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNotifications(t *testing.T) {
	s := NewNotifications(openDB(t, config.ServiceNotification))
	ctx := context.Background()
	n, err := s.Create(ctx, "u1", "Top Up Berhasil", "Saldo Anda bertambah Rp1000")
	require.NoError(t, err)
	assert.False(t, n.Read)

	read, err := s.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	_, err = s.MarkRead(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsers(t *testing.T) {
	s := NewUsers(openDB(t, config.ServiceUser))
	ctx := context.Background()
	u, err := s.Create(ctx, " Budi@Example.com ", "Budi")
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", u.Email)

	_, err = s.Create(ctx, "budi@example.com", "Other")
	assert.ErrorIs(t, err, domain.ErrConflict)

	users, total, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, users, 1)

	require.NoError(t, s.Delete(ctx, u.ID))
	_, err = s.Get(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSagaLog(t *testing.T) {
	gdb := openDB(t, config.ServicePayment)
	s := NewSagas(gdb)
	ctx := context.Background()

	r := &domain.SagaRecord{ID: uuid.NewString(), Kind: domain.SagaPayment, UserID: "u1", Amount: decimal.NewFromInt(10)}
	require.NoError(t, s.Begin(ctx, r))
	assert.Equal(t, domain.SagaStarted, r.State)

	r.RefID = "p1"
	require.NoError(t, s.Advance(ctx, r, domain.SagaDebited))
	require.NoError(t, s.Advance(ctx, r, domain.SagaCompleted))
	assert.ErrorIs(t, s.Advance(ctx, r, domain.SagaCompensated), domain.ErrConflict)

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaCompleted, got.State)
	assert.Equal(t, "p1", got.RefID)

	stuck := &domain.SagaRecord{ID: uuid.NewString(), Kind: domain.SagaPayment, UserID: "u2", Amount: decimal.NewFromInt(5)}
	require.NoError(t, s.Begin(ctx, stuck))
	require.NoError(t, gdb.Model(&domain.SagaRecord{}).Where("id = ?", stuck.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	stale, err := s.Stale(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, stuck.ID, stale[0].ID)

	all, total, err := s.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	done, total, err := s.List(ctx, domain.SagaCompleted, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, r.ID, done[0].ID)
}
