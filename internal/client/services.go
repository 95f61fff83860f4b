package client

import (
	"context"
	"net/http"
	"net/url"

	"wallet_saga/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletClient reaches the wallet service's ledger surface.
type WalletClient struct {
	c *Client
}

// NewWalletClient wraps c.
func NewWalletClient(c *Client) *WalletClient { return &WalletClient{c: c} }

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
}

// ReverseResult is the wallet service's answer to a reverse call.
type ReverseResult struct {
	Balance  decimal.Decimal `json:"balance"`
	Reversed bool            `json:"reversed"`
}

func walletPath(userID, suffix string) string {
	return "/wallets/" + url.PathEscape(userID) + suffix
}

// Create opens a wallet for userID.
func (w *WalletClient) Create(ctx context.Context, userID string) (*domain.Wallet, error) {
	var out domain.Wallet
	err := w.c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           "/wallets",
		Body:           map[string]string{"userId": userID},
		IdempotencyKey: "wallet-create:" + userID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns the current balance of userID.
func (w *WalletClient) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var out domain.Wallet
	if err := w.c.Do(ctx, Request{Method: http.MethodGet, Path: walletPath(userID, "")}, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

// Credit adds amount under key.
func (w *WalletClient) Credit(ctx context.Context, userID string, amount decimal.Decimal, key string) (decimal.Decimal, error) {
	return w.mutate(ctx, walletPath(userID, "/credit"), amount, key)
}

// Debit subtracts amount under key if the balance covers it.
func (w *WalletClient) Debit(ctx context.Context, userID string, amount decimal.Decimal, key string) (decimal.Decimal, error) {
	return w.mutate(ctx, walletPath(userID, "/deduct"), amount, key)
}

// Reverse undoes, or voids, the entry recorded under key.
func (w *WalletClient) Reverse(ctx context.Context, userID, key string) (decimal.Decimal, bool, error) {
	var out ReverseResult
	err := w.c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           walletPath(userID, "/reverse"),
		Body:           map[string]string{"key": key},
		IdempotencyKey: key + ":reverse",
	}, &out)
	if err != nil {
		return decimal.Zero, false, err
	}
	return out.Balance, out.Reversed, nil
}

func (w *WalletClient) mutate(ctx context.Context, path string, amount decimal.Decimal, key string) (decimal.Decimal, error) {
	var out domain.Wallet
	err := w.c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           path,
		Body:           amountBody{Amount: amount},
		IdempotencyKey: key,
	}, &out)
	if err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

// NotificationClient posts events to the notification service.
type NotificationClient struct {
	c *Client
}

// NewNotificationClient wraps c.
func NewNotificationClient(c *Client) *NotificationClient { return &NotificationClient{c: c} }

// Send delivers one notification. Callers treat failures as non-fatal.
func (n *NotificationClient) Send(ctx context.Context, userID, title, message string) error {
	return n.c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/notifications",
		Body:   map[string]string{"userId": userID, "title": title, "message": message},
	}, nil)
}
