package api

import (
	"errors"   // Sentinel matching
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"wallet_saga/internal/domain" // Importing domain models
	"wallet_saga/internal/ledger" // Wallet ledger
	"wallet_saga/internal/saga"   // Best-effort notifications
	"wallet_saga/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // Generated idempotency keys
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus" // Logging library
)

const walletCacheTTL = 30 * time.Second

// CreateWalletRequest represents a wallet creation request
type CreateWalletRequest struct {
	UserID string `json:"userId" binding:"required"` // Owner of the new wallet
}

// AmountRequest carries the amount of a ledger mutation
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"` // Validated by the ledger
}

// ReverseRequest names the ledger entry to undo
type ReverseRequest struct {
	Key string `json:"key" binding:"required"` // Idempotency key of the original entry
}

// BalanceResponse is the wallet state after a mutation
type BalanceResponse struct {
	UserID  string          `json:"userId"`  // Wallet owner
	Balance decimal.Decimal `json:"balance"` // Balance after the operation
}

// CreateWalletHandler opens a zero-balance wallet. Creating an existing wallet
// returns it unchanged, so the registration path can safely repeat the call.
func CreateWalletHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateWalletRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "userId is required")
			return
		}
		wallet, err := l.Create(c.Request.Context(), req.UserID)
		if errors.Is(err, domain.ErrConflict) {
			if existing, gerr := l.Wallet(c.Request.Context(), req.UserID); gerr == nil {
				ok(c, http.StatusOK, existing) // Already exists
				return
			}
		}
		if err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, http.StatusCreated, wallet)
	}
}

// GetWalletHandler returns the wallet of a user, read through the cache
func GetWalletHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.Param("userId")
		var wallet domain.Wallet
		if found, err := utils.GetCache(ctx, rdb, utils.WalletKey(userID), &wallet); err == nil && found {
			c.Header("X-Cache", "HIT")
			ok(c, http.StatusOK, wallet)
			return
		}
		w, err := l.Wallet(ctx, userID)
		if err != nil {
			fail(c, err, nil)
			return
		}
		_ = utils.SetCache(ctx, rdb, utils.WalletKey(userID), w, walletCacheTTL) // Cache for next readers
		ok(c, http.StatusOK, w)
	}
}

// TopupHandler credits a user's wallet and notifies them. A missing
// Idempotency-Key header gets a fresh key, so such requests are not deduplicated.
func TopupHandler(l *ledger.Ledger, rdb *redis.Client, notify *saga.Notify) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		var req AmountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid amount")
			return
		}
		key := idempotencyKey(c, func() string { return "topup:" + uuid.NewString() })
		ctx := c.Request.Context()
		bal, err := l.Credit(ctx, userID, req.Amount, key)
		if err != nil {
			fail(c, err, nil)
			return
		}
		_ = utils.DeleteCache(ctx, rdb, utils.WalletKey(userID)) // Invalidate wallet cache
		logrus.WithFields(logrus.Fields{
			"user_id": userID,     // Wallet owner
			"amount":  req.Amount, // Topup amount
			"balance": bal,        // New balance
			"key":     key,        // Idempotency key
		}).Info("Topup applied")
		notify.Send(ctx, userID, domain.TopupNotice(req.Amount))
		ok(c, http.StatusOK, BalanceResponse{UserID: userID, Balance: bal})
	}
}

// MutateHandler serves the internal credit and deduct routes. The caller's
// Idempotency-Key is mandatory: these routes are driven by sagas.
func MutateHandler(l *ledger.Ledger, rdb *redis.Client, kind domain.EntryKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		var req AmountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid amount")
			return
		}
		key := idempotencyKey(c, nil)
		if key == "" {
			badRequest(c, "Idempotency-Key header is required")
			return
		}
		ctx := c.Request.Context()
		var (
			bal decimal.Decimal
			err error
		)
		switch kind {
		case domain.EntryCredit:
			bal, err = l.Credit(ctx, userID, req.Amount, key)
		case domain.EntryDebit:
			bal, err = l.Debit(ctx, userID, req.Amount, key)
		default:
			badRequest(c, "Unsupported operation")
			return
		}
		if err != nil {
			fail(c, err, nil)
			return
		}
		_ = utils.DeleteCache(ctx, rdb, utils.WalletKey(userID)) // Invalidate wallet cache
		ok(c, http.StatusOK, BalanceResponse{UserID: userID, Balance: bal})
	}
}

// ReverseHandler undoes, or voids, the ledger entry recorded under a key
func ReverseHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		var req ReverseRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "key is required")
			return
		}
		ctx := c.Request.Context()
		bal, reversed, err := l.Reverse(ctx, userID, req.Key)
		if err != nil {
			fail(c, err, nil)
			return
		}
		_ = utils.DeleteCache(ctx, rdb, utils.WalletKey(userID)) // Invalidate wallet cache
		ok(c, http.StatusOK, gin.H{"userId": userID, "balance": bal, "reversed": reversed})
	}
}
