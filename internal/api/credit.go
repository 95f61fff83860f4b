package api

import (
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"wallet_saga/internal/domain" // Importing domain models
	"wallet_saga/internal/saga"   // Credit saga
	"wallet_saga/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/shopspring/decimal"
)

// CreditRequest applies for, or repays, a credit
type CreditRequest struct {
	UserID string          `json:"userId" binding:"required"` // Borrower
	Amount decimal.Decimal `json:"amount"`                    // Validated by the saga
}

// ApplyCreditHandler grants a credit into the user's wallet
func ApplyCreditHandler(s *saga.CreditSaga, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreditRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "userId and amount are required")
			return
		}
		ctx := c.Request.Context()
		credit, err := s.Apply(ctx, req.UserID, req.Amount)
		if credit != nil {
			_ = utils.DeleteCache(ctx, rdb, utils.CreditsKey(req.UserID)) // Invalidate credit list cache
		}
		if err != nil {
			if credit != nil {
				fail(c, err, credit)
			} else {
				fail(c, err, nil)
			}
			return
		}
		ok(c, http.StatusCreated, credit)
	}
}

// PayCreditHandler repays a credit in full from the wallet
func PayCreditHandler(s *saga.CreditSaga, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreditRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "userId and amount are required")
			return
		}
		ctx := c.Request.Context()
		credit, err := s.PayCredit(ctx, req.UserID, c.Param("id"), req.Amount)
		if err != nil {
			fail(c, err, nil)
			return
		}
		_ = utils.DeleteCache(ctx, rdb, utils.CreditsKey(req.UserID)) // Invalidate credit list cache
		ok(c, http.StatusOK, credit)
	}
}

// ListCreditsHandler lists a user's credits, read through the cache
func ListCreditsHandler(s *saga.CreditSaga, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.Param("id") // Shares the wildcard with /credits/:id/pay
		var cached []domain.Credit
		if found, err := utils.GetCache(ctx, rdb, utils.CreditsKey(userID), &cached); err == nil && found {
			c.Header("X-Cache", "HIT")
			ok(c, http.StatusOK, cached)
			return
		}
		list, err := s.Credits(ctx, userID)
		if err != nil {
			fail(c, err, nil)
			return
		}
		if list == nil {
			list = []domain.Credit{}
		}
		_ = utils.SetCache(ctx, rdb, utils.CreditsKey(userID), list, time.Minute)
		ok(c, http.StatusOK, list)
	}
}
