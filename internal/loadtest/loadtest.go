// Package loadtest drives the services through their public HTTP surface to
// check the ledger and saga guarantees under load. Every counter lives on the
// run that owns it; concurrent runs never share state.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wallet_saga/internal/client"
	"wallet_saga/internal/domain"
	"wallet_saga/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scenario names accepted by Run.
const (
	ScenarioSmoke   = "smoke"
	ScenarioRace    = "race"
	ScenarioCascade = "cascade"
)

// Targets are the base URLs of the five services.
type Targets struct {
	User         string
	Wallet       string
	Payment      string
	Credit       string
	Notification string
}

// RunConfig parameterises one run.
type RunConfig struct {
	Targets     Targets
	Iterations  int             // Virtual users (smoke, cascade) or debits (race)
	Concurrency int             // In-flight ceiling per target
	Amount      decimal.Decimal // Unit amount moved per operation
	Timeout     time.Duration   // Client side bound for one request
	SlowAfter   time.Duration   // Responses slower than this count as slow
	JWTSecret   string          // Signs the service token the race scenario needs
}

func (c *RunConfig) defaults() {
	if c.Iterations <= 0 {
		c.Iterations = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if !c.Amount.IsPositive() {
		c.Amount = decimal.NewFromInt(10000)
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.SlowAfter <= 0 {
		c.SlowAfter = 2 * time.Second
	}
}

// Report summarises a run.
type Report struct {
	Scenario     string          `json:"scenario"`
	Requests     int64           `json:"requests"`
	Succeeded    int64           `json:"succeeded"`
	Failed       int64           `json:"failed"`
	Refused      int64           `json:"refused"`       // Insufficient funds answers
	Timeouts     int64           `json:"timeouts"`      // Requests that hit the client timeout
	FastFailures int64           `json:"fast_failures"` // Failures answered before SlowAfter
	Slow         int64           `json:"slow"`
	ByCode       map[string]int  `json:"by_code"`
	P50          time.Duration   `json:"p50"`
	P95          time.Duration   `json:"p95"`
	Max          time.Duration   `json:"max"`
	FinalBalance decimal.Decimal `json:"final_balance"`
	Violations   []string        `json:"violations,omitempty"`
	Elapsed      time.Duration   `json:"elapsed"`
}

// OK reports whether no invariant was violated.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// run is the accumulator of one Run call.
type run struct {
	cfg    RunConfig
	report Report
	log    logrus.FieldLogger

	mu        sync.Mutex
	latencies []time.Duration

	users, wallets, payments, credits, notifications *client.Client
}

// Run executes scenario against cfg.Targets.
func Run(ctx context.Context, scenario string, cfg RunConfig) (*Report, error) {
	cfg.defaults()
	r := &run{
		cfg:    cfg,
		report: Report{Scenario: scenario, ByCode: map[string]int{}},
		log:    logrus.WithFields(logrus.Fields{"component": "loadtest", "scenario": scenario}),
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	start := time.Now()
	var err error
	switch scenario {
	case ScenarioSmoke:
		err = r.smoke(ctx)
	case ScenarioRace:
		err = r.race(ctx)
	case ScenarioCascade:
		err = r.cascade(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown scenario %q", domain.ErrValidation, scenario)
	}
	r.report.Elapsed = time.Since(start)
	r.summarise()
	return &r.report, err
}

func (r *run) connect() error {
	var tokens client.TokenSource
	if r.cfg.JWTSecret != "" {
		tokens = utils.NewTokenSource("loadtest", r.cfg.JWTSecret, time.Hour)
	}
	build := func(name, url string) (*client.Client, error) {
		if url == "" {
			return nil, nil
		}
		return client.New(client.Options{
			Name: "loadtest-" + name, BaseURL: url, Timeout: r.cfg.Timeout,
			MaxConcurrent: int64(r.cfg.Concurrency), Tokens: tokens,
		})
	}
	var err error
	t := r.cfg.Targets
	if r.users, err = build("user", t.User); err != nil {
		return err
	}
	if r.wallets, err = build("wallet", t.Wallet); err != nil {
		return err
	}
	if r.payments, err = build("payment", t.Payment); err != nil {
		return err
	}
	if r.credits, err = build("credit", t.Credit); err != nil {
		return err
	}
	r.notifications, err = build("notification", t.Notification)
	return err
}

// call issues one request and accounts for it.
func (r *run) call(ctx context.Context, c *client.Client, req client.Request, out any) error {
	if c == nil {
		return fmt.Errorf("%w: no target configured for %s", domain.ErrValidation, req.Path)
	}
	start := time.Now()
	err := c.Do(ctx, req, out)
	r.account(time.Since(start), err)
	return err
}

// account records one request that took took and ended with err.
func (r *run) account(took time.Duration, err error) {
	atomic.AddInt64(&r.report.Requests, 1)
	r.mu.Lock()
	r.latencies = append(r.latencies, took)
	if err != nil {
		r.report.ByCode[domain.Code(err)]++
	}
	r.mu.Unlock()

	if took > r.cfg.SlowAfter {
		atomic.AddInt64(&r.report.Slow, 1)
	}
	switch {
	case err == nil:
		atomic.AddInt64(&r.report.Succeeded, 1)
	case errors.Is(err, domain.ErrInsufficientFunds):
		atomic.AddInt64(&r.report.Refused, 1)
	default:
		atomic.AddInt64(&r.report.Failed, 1)
		if took >= r.cfg.Timeout {
			atomic.AddInt64(&r.report.Timeouts, 1)
		} else if took < r.cfg.SlowAfter {
			atomic.AddInt64(&r.report.FastFailures, 1)
		}
	}
}

func (r *run) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.report.Violations = append(r.report.Violations, msg)
	r.mu.Unlock()
	r.log.WithField("violation", msg).Error("Invariant violated")
}

func (r *run) summarise() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.latencies) == 0 {
		return
	}
	sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })
	at := func(q float64) time.Duration { return r.latencies[int(q*float64(len(r.latencies)-1))] }
	r.report.P50, r.report.P95, r.report.Max = at(0.50), at(0.95), r.latencies[len(r.latencies)-1]
}

// fanOut runs fn for 0..n-1 with at most Concurrency in flight. Failures are
// accounted per request, so one never stops the others.
func (r *run) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}
