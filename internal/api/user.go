package api

import (
	"context"  // Wallet creation call
	"fmt"      // Error wrapping
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"wallet_saga/internal/domain" // Importing domain models
	"wallet_saga/internal/store"  // User repository
	"wallet_saga/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// WalletCreator opens the wallet of a newly registered user
type WalletCreator interface {
	Create(ctx context.Context, userID string) (*domain.Wallet, error)
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email string `json:"email" binding:"required,email"` // Unique login email
	Name  string `json:"name" binding:"required"`        // Display name
}

// RegisterResponse is the new user with its wallet
type RegisterResponse struct {
	User   *domain.User   `json:"user"`
	Wallet *domain.Wallet `json:"wallet"`
}

// RegisterHandler creates a user and its wallet. The wallet call is bounded by
// the client's timeout; when it fails the user row is removed again.
func RegisterHandler(users *store.Users, wallets WalletCreator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "A valid email and name are required")
			return
		}
		ctx := c.Request.Context()
		user, err := users.Create(ctx, req.Email, req.Name)
		if err != nil {
			fail(c, err, nil)
			return
		}
		wallet, err := wallets.Create(ctx, user.ID)
		if err != nil {
			log := logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()})
			if derr := users.Delete(context.WithoutCancel(ctx), user.ID); derr != nil {
				log.WithField("delete_error", derr.Error()).Error("Orphaned user after wallet failure")
			} else {
				log.Warn("Registration rolled back, wallet unavailable")
			}
			fail(c, fmt.Errorf("%w: create wallet: %v", domain.ErrDependencyUnavailable, err), nil)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "wallet_id": wallet.ID}).Info("User registered")
		ok(c, http.StatusCreated, RegisterResponse{User: user, Wallet: wallet})
	}
}

// GetUserHandler returns one user
func GetUserHandler(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, http.StatusOK, user)
	}
}

// ListUsersHandler returns a page of users
func ListUsersHandler(users *store.Users, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize, offset := pagination(c)
		// Create a cache key based on pagination parameters
		cacheKey := fmt.Sprintf("users:page=%d:size=%d", page, pageSize)
		var cached Page[domain.User]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			ok(c, http.StatusOK, cached)
			return
		}
		list, total, err := users.List(ctx, pageSize, offset)
		if err != nil {
			fail(c, err, nil)
			return
		}
		resp := newPage(list, page, pageSize, total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 10*time.Second) // Cache the response for future requests
		ok(c, http.StatusOK, resp)
	}
}
