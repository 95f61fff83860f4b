// Package client is the boundary for synchronous calls between services.
// Every call is bounded by a timeout and by a concurrency ceiling; there is no
// retry. Callers that need to reissue a request do so with the same
// idempotency key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wallet_saga/internal/domain"
	"wallet_saga/internal/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// IdempotencyHeader carries the caller generated deduplication key.
const IdempotencyHeader = "Idempotency-Key"

const maxResponseBytes = 1 << 20

// Envelope is the normalised response every service returns.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// TokenSource supplies bearer tokens for outbound calls.
type TokenSource interface {
	Token() (string, error)
}

// Options configure a Client. Timeout and MaxConcurrent are mandatory.
type Options struct {
	Name          string        // Target name used in logs and metrics
	BaseURL       string        // e.g. http://localhost:3002
	Timeout       time.Duration // Upper bound for one call, queueing included
	MaxConcurrent int64         // In-flight ceiling towards the target
	Tokens        TokenSource   // Optional service credentials
	Transport     http.RoundTripper
}

// Request describes one outbound exchange.
type Request struct {
	Method         string
	Path           string
	Body           any
	IdempotencyKey string
}

// Client issues requests to one service.
type Client struct {
	name    string
	base    string
	timeout time.Duration
	http    *http.Client
	sem     *semaphore.Weighted
	tokens  TokenSource
	log     logrus.FieldLogger
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("client: base URL is required")
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("client: timeout must be positive")
	}
	if opts.MaxConcurrent <= 0 {
		return nil, errors.New("client: max concurrency must be positive")
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     int(opts.MaxConcurrent),
			MaxIdleConnsPerHost: int(opts.MaxConcurrent),
			IdleConnTimeout:     90 * time.Second,
		}
	}
	name := opts.Name
	if name == "" {
		name = opts.BaseURL
	}
	return &Client{
		name:    name,
		base:    strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		tokens:  opts.Tokens,
		log:     logrus.WithField("target", name),
	}, nil
}

// Name returns the target name.
func (c *Client) Name() string { return c.name }

// Do performs req and decodes the envelope's data into out (which may be nil).
// Transport failures, timeouts and unclassified 5xx responses are reported as
// domain.ErrDependencyUnavailable; remote domain errors keep their sentinel.
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = domain.Code(err)
		}
		metrics.CallDuration.WithLabelValues(c.name, outcome).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.unavailable(req, fmt.Errorf("no free slot: %w", err))
	}
	defer c.sem.Release(1)

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.unavailable(req, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.unavailable(req, fmt.Errorf("read body: %w", err))
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return c.unavailable(req, fmt.Errorf("status %d with malformed body: %w", resp.StatusCode, err))
	}
	if !env.Success {
		return c.remoteError(req, resp.StatusCode, env)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", req.Method, req.Path, err)
		}
	}
	c.log.WithFields(logrus.Fields{
		"method": req.Method, "path": req.Path, "status": resp.StatusCode, "took": time.Since(start),
	}).Debug("Service call succeeded")
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", domain.ErrValidation, err)
		}
		body = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrValidation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(IdempotencyHeader, req.IdempotencyKey)
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("sign service token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}
	return httpReq, nil
}

func (c *Client) remoteError(req Request, status int, env Envelope) error {
	sentinel := domain.ErrorForCode(env.Code)
	if sentinel == nil {
		switch {
		case status == http.StatusNotFound:
			sentinel = domain.ErrNotFound
		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			sentinel = domain.ErrValidation
		case status == http.StatusConflict:
			sentinel = domain.ErrConflict
		default:
			sentinel = domain.ErrDependencyUnavailable
		}
	}
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.log.WithFields(logrus.Fields{
		"method": req.Method, "path": req.Path, "status": status, "code": env.Code, "error": msg,
	}).Warn("Service call rejected")
	return fmt.Errorf("%s %s %s: %w: %s", c.name, req.Method, req.Path, sentinel, msg)
}

func (c *Client) unavailable(req Request, cause error) error {
	c.log.WithFields(logrus.Fields{
		"method": req.Method, "path": req.Path, "error": cause.Error(),
	}).Warn("Service call failed")
	return fmt.Errorf("%s %s %s: %w: %v", c.name, req.Method, req.Path, domain.ErrDependencyUnavailable, cause)
}
