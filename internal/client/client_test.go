package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet_saga/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func newTestClient(t *testing.T, url string, timeout time.Duration, max int64) *Client {
	t.Helper()
	c, err := New(Options{Name: "wallet", BaseURL: url, Timeout: timeout, MaxConcurrent: max, Tokens: staticToken("tok")})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBounds(t *testing.T) {
	_, err := New(Options{BaseURL: "http://x", MaxConcurrent: 1})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "http://x", Timeout: time.Second})
	assert.Error(t, err)
	_, err = New(Options{Timeout: time.Second, MaxConcurrent: 1})
	assert.Error(t, err)
}

func TestDoDecodesDataAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get(IdempotencyHeader))
		assert.Equal(t, "/wallets/u1/deduct", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "25", body["amount"])
		writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: json.RawMessage(`{"userId":"u1","balance":"75"}`)})
	}))
	defer srv.Close()

	wallet := NewWalletClient(newTestClient(t, srv.URL, time.Second, 4))
	bal, err := wallet.Debit(context.Background(), "u1", decimal.NewFromInt(25), "key-1")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(75)))
}

func TestRemoteErrorKeepsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, Envelope{Error: "Insufficient balance", Code: domain.CodeInsufficientFunds})
	}))
	defer srv.Close()

	wallet := NewWalletClient(newTestClient(t, srv.URL, time.Second, 4))
	_, err := wallet.Debit(context.Background(), "u1", decimal.NewFromInt(25), "k")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.NotErrorIs(t, err, domain.ErrDependencyUnavailable)
}

func TestServerErrorWithoutEnvelopeIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL, time.Second, 1).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
}

func TestUnclassifiedNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, Envelope{Error: "no route"})
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL, time.Second, 1).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTimeoutContainment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100*time.Millisecond, 1)
	start := time.Now()
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/wallets"}, nil)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	assert.Less(t, elapsed, time.Second)
}

func TestQueuedCallsShareTheTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		writeEnvelope(w, http.StatusOK, Envelope{Success: true})
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, 150*time.Millisecond, 1)
	go func() { _ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"}, nil) }()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/queued"}, nil)
	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConcurrencyCeiling(t *testing.T) {
	var inflight, peak int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inflight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		writeEnvelope(w, http.StatusOK, Envelope{Success: true})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5*time.Second, 2)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil))
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestReverseAndNotificationClients(t *testing.T) {
	var notified int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wallets/u1/reverse":
			assert.Equal(t, "s1:debit:reverse", r.Header.Get(IdempotencyHeader))
			writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: json.RawMessage(`{"balance":"100","reversed":true}`)})
		case "/notifications":
			atomic.AddInt32(&notified, 1)
			writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: json.RawMessage(`{"id":"n1"}`)})
		default:
			writeEnvelope(w, http.StatusNotFound, Envelope{Error: "no route"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 2)
	bal, reversed, err := NewWalletClient(c).Reverse(context.Background(), "u1", "s1:debit")
	require.NoError(t, err)
	assert.True(t, reversed)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)))

	require.NoError(t, NewNotificationClient(c).Send(context.Background(), "u1", "t", "m"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notified))
}
