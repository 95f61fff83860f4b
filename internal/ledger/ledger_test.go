package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"wallet_saga/internal/config"
	"wallet_saga/internal/db"
	"wallet_saga/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	gdb, err := db.OpenMemory(uuid.NewString(), config.ServiceWallet)
	require.NoError(t, err)
	return New(gdb)
}

func seed(t *testing.T, l *Ledger, user string, amount int64) {
	t.Helper()
	_, err := l.Create(context.Background(), user)
	require.NoError(t, err)
	if amount > 0 {
		_, err = l.Credit(context.Background(), user, decimal.NewFromInt(amount), "seed-"+user)
		require.NoError(t, err)
	}
}

func TestCreditAndDebit(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 0)

	bal, err := l.Credit(ctx, "u1", decimal.NewFromInt(1500), "k1")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(1500)))

	bal, err = l.Debit(ctx, "u1", decimal.NewFromInt(1000), "k2")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(500)))

	got, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(500)))
}

func TestDebitInsufficientFundsLeavesBalance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 100)

	_, err := l.Debit(ctx, "u1", decimal.NewFromInt(101), "k1")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	bal, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)))

	// A refused debit records nothing, so the same key may be retried later.
	_, err = l.Credit(ctx, "u1", decimal.NewFromInt(1), "top")
	require.NoError(t, err)
	bal, err = l.Debit(ctx, "u1", decimal.NewFromInt(101), "k1")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestUnknownWallet(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = l.Debit(ctx, "ghost", decimal.NewFromInt(1), "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = l.Credit(ctx, "ghost", decimal.NewFromInt(1), "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTwiceConflicts(t *testing.T) {
	l := newTestLedger(t)
	seed(t, l, "u1", 0)
	_, err := l.Create(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestValidationBeforeSideEffects(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 10)

	cases := []struct {
		name   string
		amount decimal.Decimal
		key    string
	}{
		{"zero", decimal.Zero, "k"},
		{"negative", decimal.NewFromInt(-5), "k"},
		{"sub cent", decimal.RequireFromString("0.001"), "k"},
		{"missing key", decimal.NewFromInt(1), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Debit(ctx, "u1", tc.amount, tc.key)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	bal, _ := l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
}

func TestDuplicateKeyAppliesOnce(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 0)

	first, err := l.Credit(ctx, "u1", decimal.NewFromInt(250), "topup-1")
	require.NoError(t, err)
	second, err := l.Credit(ctx, "u1", decimal.NewFromInt(250), "topup-1")
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	bal, _ := l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(decimal.NewFromInt(250)))

	_, err = l.Credit(ctx, "u1", decimal.NewFromInt(999), "topup-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestConcurrentDebitsNoLostUpdate(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	const n = 40
	seed(t, l, "u1", n*25)

	var ok, refused int64
	var wg sync.WaitGroup
	// Ten more debits than the balance supports.
	for i := 0; i < n+10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Debit(ctx, "u1", decimal.NewFromInt(25), fmt.Sprintf("d-%d", i))
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case assert.ErrorIs(t, err, domain.ErrInsufficientFunds):
				atomic.AddInt64(&refused, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n), ok)
	assert.Equal(t, int64(10), refused)
	bal, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "balance %s", bal)
}

func TestConcurrentMixedOperationsSum(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 100)

	var debited int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := l.Credit(ctx, "u1", decimal.NewFromInt(10), fmt.Sprintf("c-%d", i))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Debit(ctx, "u1", decimal.NewFromInt(15), fmt.Sprintf("d-%d", i)); err == nil {
				atomic.AddInt64(&debited, 15)
			}
		}(i)
	}
	wg.Wait()

	bal, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	want := decimal.NewFromInt(100 + 30*10 - debited)
	assert.True(t, bal.Equal(want), "got %s want %s", bal, want)
	assert.False(t, bal.IsNegative())
}

func TestReverseDebitRefundsOnce(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 1000)

	_, err := l.Debit(ctx, "u1", decimal.NewFromInt(400), "saga:debit")
	require.NoError(t, err)

	bal, reversed, err := l.Reverse(ctx, "u1", "saga:debit")
	require.NoError(t, err)
	assert.True(t, reversed)
	assert.True(t, bal.Equal(decimal.NewFromInt(1000)))

	bal, reversed, err = l.Reverse(ctx, "u1", "saga:debit")
	require.NoError(t, err)
	assert.True(t, reversed)
	assert.True(t, bal.Equal(decimal.NewFromInt(1000)))

	got, _ := l.Balance(ctx, "u1")
	assert.True(t, got.Equal(decimal.NewFromInt(1000)))
}

func TestReplayAfterReverseConflicts(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 5000)

	_, err := l.Debit(ctx, "u1", decimal.NewFromInt(1000), "k1")
	require.NoError(t, err)
	_, _, err = l.Reverse(ctx, "u1", "k1")
	require.NoError(t, err)

	// A retried debit must not report success for money that is back in the wallet.
	_, err = l.Debit(ctx, "u1", decimal.NewFromInt(1000), "k1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	bal, _ := l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(decimal.NewFromInt(5000)))

	_, err = l.Credit(ctx, "u1", decimal.NewFromInt(300), "c1")
	require.NoError(t, err)
	_, _, err = l.Reverse(ctx, "u1", "c1")
	require.NoError(t, err)
	_, err = l.Credit(ctx, "u1", decimal.NewFromInt(300), "c1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	bal, _ = l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(decimal.NewFromInt(5000)))
}

func TestReverseUnknownKeyVoidsLateRequest(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 1000)

	bal, reversed, err := l.Reverse(ctx, "u1", "saga:debit")
	require.NoError(t, err)
	assert.False(t, reversed)
	assert.True(t, bal.Equal(decimal.NewFromInt(1000)))

	// The original debit arrives after it was given up on.
	_, err = l.Debit(ctx, "u1", decimal.NewFromInt(400), "saga:debit")
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, _ := l.Balance(ctx, "u1")
	assert.True(t, got.Equal(decimal.NewFromInt(1000)))
}

func TestReverseCreditNeedsFunds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 0)

	_, err := l.Credit(ctx, "u1", decimal.NewFromInt(500), "grant")
	require.NoError(t, err)
	_, err = l.Debit(ctx, "u1", decimal.NewFromInt(300), "spend")
	require.NoError(t, err)

	_, _, err = l.Reverse(ctx, "u1", "grant")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, _ := l.Balance(ctx, "u1")
	assert.True(t, got.Equal(decimal.NewFromInt(200)))
}

func TestEntriesNewestFirst(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	seed(t, l, "u1", 100)
	_, err := l.Debit(ctx, "u1", decimal.NewFromInt(40), "d1")
	require.NoError(t, err)

	entries, total, err := l.Entries(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	kinds := []domain.EntryKind{entries[0].Kind, entries[1].Kind}
	assert.ElementsMatch(t, []domain.EntryKind{domain.EntryCredit, domain.EntryDebit}, kinds)
}
