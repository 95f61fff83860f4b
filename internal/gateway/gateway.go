// Package gateway talks to the external settlement bank.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"wallet_saga/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrDeclined is returned when the bank refuses a settlement.
var ErrDeclined = errors.New("settlement declined")

// ErrUnknownReference is returned by Lookup for references never settled.
var ErrUnknownReference = errors.New("unknown settlement reference")

// Request is one settlement order. Reference is the caller's saga id and makes
// Settle idempotent on the bank side.
type Request struct {
	Reference string
	UserID    string
	Amount    decimal.Decimal
	Method    string
}

// Result of a settled request.
type Result struct {
	Reference   string
	ExternalRef string
	SettledAt   time.Time
}

// Gateway settles payments with the bank.
type Gateway interface {
	Settle(ctx context.Context, req Request) (Result, error)
	Lookup(ctx context.Context, reference string) (Result, error)
}

// Simulated stands in for the BNI API: fixed latency, optional random declines.
type Simulated struct {
	latency     time.Duration
	failureRate float64

	mu      sync.Mutex
	rnd     *rand.Rand
	settled map[string]Result
	log     logrus.FieldLogger
}

// NewSimulated returns a gateway that answers after latency and declines with
// probability failureRate.
func NewSimulated(latency time.Duration, failureRate float64) *Simulated {
	return &Simulated{
		latency:     latency,
		failureRate: failureRate,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		settled:     make(map[string]Result),
		log:         logrus.WithField("component", "gateway"),
	}
}

// Settle waits for the simulated bank round trip, honouring ctx.
func (g *Simulated) Settle(ctx context.Context, req Request) (Result, error) {
	g.log.WithFields(logrus.Fields{"reference": req.Reference, "amount": req.Amount, "method": req.Method}).Debug("Calling BNI API")
	if prev, ok := g.lookup(req.Reference); ok {
		return prev, nil
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: settlement %s: %v", domain.ErrDependencyUnavailable, req.Reference, ctx.Err())
	case <-timer.C:
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failureRate > 0 && g.rnd.Float64() < g.failureRate {
		g.log.WithField("reference", req.Reference).Warn("BNI API declined")
		return Result{}, fmt.Errorf("%w: reference %s", ErrDeclined, req.Reference)
	}
	now := time.Now()
	res := Result{Reference: req.Reference, ExternalRef: fmt.Sprintf("BNI-%d", now.UnixMilli()), SettledAt: now}
	g.settled[req.Reference] = res
	g.log.WithFields(logrus.Fields{"reference": req.Reference, "external_ref": res.ExternalRef}).Info("BNI API response success")
	return res, nil
}

// Lookup reports the outcome of an earlier Settle.
func (g *Simulated) Lookup(ctx context.Context, reference string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
	}
	if res, ok := g.lookup(reference); ok {
		return res, nil
	}
	return Result{}, ErrUnknownReference
}

func (g *Simulated) lookup(reference string) (Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.settled[reference]
	return res, ok
}
