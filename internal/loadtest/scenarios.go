package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"wallet_saga/internal/client"
	"wallet_saga/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type registered struct {
	User   domain.User   `json:"user"`
	Wallet domain.Wallet `json:"wallet"`
}

func (r *run) register(ctx context.Context) (*registered, error) {
	id := uuid.NewString()
	var out registered
	err := r.call(ctx, r.users, client.Request{
		Method: http.MethodPost,
		Path:   "/users",
		Body:   map[string]string{"email": "lt-" + id[:8] + "@example.com", "name": "Load " + id[:8]},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *run) balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var w domain.Wallet
	if err := r.call(ctx, r.wallets, client.Request{Method: http.MethodGet, Path: "/wallets/" + url.PathEscape(userID)}, &w); err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

func (r *run) topup(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.call(ctx, r.wallets, client.Request{
		Method:         http.MethodPost,
		Path:           "/wallets/" + url.PathEscape(userID) + "/topup",
		Body:           map[string]any{"amount": amount},
		IdempotencyKey: "lt-topup:" + uuid.NewString(),
	}, nil)
}

// smoke walks every user journey once per virtual user and checks that the
// final balance matches the operations that reported success.
func (r *run) smoke(ctx context.Context) error {
	a := r.cfg.Amount
	r.fanOut(ctx, r.cfg.Iterations, func(ctx context.Context, i int) {
		log := r.log.WithField("vu", i)
		reg, err := r.register(ctx)
		if err != nil {
			log.WithField("error", err.Error()).Warn("Registration failed")
			return
		}
		userID := reg.User.ID
		expected := decimal.Zero

		if err := r.topup(ctx, userID, a.Mul(decimal.NewFromInt(10))); err == nil {
			expected = expected.Add(a.Mul(decimal.NewFromInt(10)))
		}
		var payment domain.Payment
		err = r.call(ctx, r.payments, client.Request{
			Method: http.MethodPost, Path: "/payments",
			Body: map[string]any{"userId": userID, "amount": a, "method": "qris"},
		}, &payment)
		switch {
		case err == nil:
			expected = expected.Sub(a)
		case errors.Is(err, domain.ErrCompensationFailed):
			r.violate("vu %d: payment compensation failed: %v", i, err)
		}

		var credit domain.Credit
		err = r.call(ctx, r.credits, client.Request{
			Method: http.MethodPost, Path: "/credits",
			Body: map[string]any{"userId": userID, "amount": a},
		}, &credit)
		if err == nil {
			expected = expected.Add(a)
			err = r.call(ctx, r.credits, client.Request{
				Method: http.MethodPost, Path: "/credits/" + url.PathEscape(credit.ID) + "/pay",
				Body: map[string]any{"userId": userID, "amount": credit.Amount},
			}, nil)
			if err == nil {
				expected = expected.Sub(a)
			}
		}

		var notes []domain.Notification
		_ = r.call(ctx, r.notifications, client.Request{
			Method: http.MethodGet, Path: "/notifications/" + url.PathEscape(userID),
		}, &notes)

		got, err := r.balance(ctx, userID)
		if err != nil {
			return
		}
		if !got.Equal(expected) {
			r.violate("vu %d: balance %s, expected %s", i, got.StringFixed(2), expected.StringFixed(2))
		}
		log.WithFields(logrus.Fields{"user_id": userID, "balance": got, "notifications": len(notes)}).Debug("Journey finished")
	})
	return ctx.Err()
}

// race funds one wallet for exactly Iterations debits, fires a quarter more
// concurrently through the saga-facing route and expects exactly Iterations
// to succeed with nothing left.
func (r *run) race(ctx context.Context) error {
	if r.cfg.JWTSecret == "" {
		return fmt.Errorf("%w: the race scenario needs a JWT secret for the internal wallet route", domain.ErrValidation)
	}
	if r.wallets == nil {
		return fmt.Errorf("%w: the race scenario needs the wallet service URL", domain.ErrValidation)
	}
	reg, err := r.register(ctx)
	if err != nil {
		return fmt.Errorf("register race user: %w", err)
	}
	userID := reg.User.ID
	n := r.cfg.Iterations
	if err := r.topup(ctx, userID, r.cfg.Amount.Mul(decimal.NewFromInt(int64(n)))); err != nil {
		return fmt.Errorf("fund race wallet: %w", err)
	}
	before := atomic.LoadInt64(&r.report.Succeeded)
	extra := n/4 + 1
	wallet := client.NewWalletClient(r.wallets)
	r.fanOut(ctx, n+extra, func(ctx context.Context, i int) {
		start := time.Now()
		_, err := wallet.Debit(ctx, userID, r.cfg.Amount, fmt.Sprintf("lt-race:%s:%d", userID, i))
		r.account(time.Since(start), err)
	})

	if won := atomic.LoadInt64(&r.report.Succeeded) - before; won != int64(n) {
		r.violate("%d debits succeeded, expected %d", won, n)
	}
	bal, err := r.balance(ctx, userID)
	if err != nil {
		return fmt.Errorf("read race balance: %w", err)
	}
	r.report.FinalBalance = bal
	if !bal.IsZero() {
		r.violate("final balance %s, expected 0", bal.StringFixed(2))
	}
	return ctx.Err()
}

// cascade bursts registrations at the user service. The user service calls the
// wallet service synchronously, so a slow wallet shows up here as timeouts or
// fast failures rather than as requests that hang.
func (r *run) cascade(ctx context.Context) error {
	r.fanOut(ctx, r.cfg.Iterations, func(ctx context.Context, i int) {
		_, _ = r.register(ctx)
	})
	// The client bounds every call; anything far beyond it means a call hung.
	if limit := r.cfg.Timeout + time.Second; r.maxLatency() > limit {
		r.violate("slowest request took %s, bound is %s", r.maxLatency(), limit)
	}
	return ctx.Err()
}

func (r *run) maxLatency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max time.Duration
	for _, d := range r.latencies {
		if d > max {
			max = d
		}
	}
	return max
}
