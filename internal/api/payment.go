package api

import (
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"wallet_saga/internal/domain" // Importing domain models
	"wallet_saga/internal/saga"   // Payment saga
	"wallet_saga/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/shopspring/decimal"
)

// PayRequest represents a payment request
type PayRequest struct {
	UserID string          `json:"userId" binding:"required"` // Payer
	Amount decimal.Decimal `json:"amount"`                    // Validated by the saga
	Method string          `json:"method" binding:"required"` // qris, transfer, ...
}

// PayHandler runs the payment saga. A failed payment is returned alongside the error.
func PayHandler(s *saga.PaymentSaga, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PayRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "userId, amount and method are required")
			return
		}
		ctx := c.Request.Context()
		payment, err := s.Pay(ctx, req.UserID, req.Amount, req.Method)
		if payment != nil {
			_ = utils.DeleteCache(ctx, rdb, utils.PaymentsKey(req.UserID)) // Invalidate history cache
		}
		if err != nil {
			if payment != nil {
				fail(c, err, payment)
			} else {
				fail(c, err, nil)
			}
			return
		}
		ok(c, http.StatusCreated, payment)
	}
}

// PaymentHistoryHandler lists a user's payments, read through the cache
func PaymentHistoryHandler(s *saga.PaymentSaga, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.Param("userId")
		var cached []domain.Payment
		if found, err := utils.GetCache(ctx, rdb, utils.PaymentsKey(userID), &cached); err == nil && found {
			c.Header("X-Cache", "HIT")
			ok(c, http.StatusOK, cached)
			return
		}
		list, err := s.History(ctx, userID)
		if err != nil {
			fail(c, err, nil)
			return
		}
		if list == nil {
			list = []domain.Payment{}
		}
		_ = utils.SetCache(ctx, rdb, utils.PaymentsKey(userID), list, time.Minute)
		ok(c, http.StatusOK, list)
	}
}
