package api

import (
	"fmt"      // Cache key formatting
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"wallet_saga/internal/domain" // Importing domain models
	"wallet_saga/internal/ledger" // Wallet ledger
	"wallet_saga/internal/store"  // Saga log
	"wallet_saga/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// ListSagasHandler pages through the saga log, optionally filtered by state.
// Operators use ?state=compensation_failed to find money that needs reconciling.
func ListSagasHandler(sagas *store.Sagas, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize, offset := pagination(c)
		state := domain.SagaState(c.Query("state"))
		// Create a cache key based on filter and pagination parameters
		cacheKey := fmt.Sprintf("admin:sagas:state=%s:page=%d:size=%d", state, page, pageSize)
		var cached Page[domain.SagaRecord]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			ok(c, http.StatusOK, cached)
			return
		}
		list, total, err := sagas.List(ctx, state, pageSize, offset)
		if err != nil {
			fail(c, err, nil)
			return
		}
		resp := newPage(list, page, pageSize, total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 5*time.Second) // Short TTL, the log moves fast
		ok(c, http.StatusOK, resp)
	}
}

// GetSagaHandler returns one saga record, uncached so operators see its latest state
func GetSagaHandler(sagas *store.Sagas) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := sagas.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, http.StatusOK, rec)
	}
}

// ListEntriesHandler pages through the ledger entries of one wallet
func ListEntriesHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, offset := pagination(c)
		entries, total, err := l.Entries(c.Request.Context(), c.Param("userId"), pageSize, offset)
		if err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, http.StatusOK, newPage(entries, page, pageSize, total))
	}
}
