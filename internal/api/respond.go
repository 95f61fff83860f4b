package api

import (
	"errors"   // Sentinel matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"wallet_saga/internal/client" // Idempotency header name
	"wallet_saga/internal/domain" // Error taxonomy

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// CompensationMessage is what a caller sees when a refund failed. It must
// never read like an ordinary rejection.
const CompensationMessage = "your money may be affected, an operator has been notified"

// StatusFor maps a wire code to its HTTP status
func StatusFor(code string) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail writes err as an error envelope; data, when not nil, carries the entity
// state the failure left behind (e.g. a failed payment).
func fail(c *gin.Context, err error, data any) {
	code := domain.Code(err)
	status := StatusFor(code)
	msg := err.Error()
	fields := logrus.Fields{"path": c.Request.URL.Path, "code": code, "error": err.Error()}
	switch code {
	case domain.CodeCompensationFailed:
		msg = CompensationMessage
		var cerr *domain.CompensationError
		if errors.As(err, &cerr) {
			fields["saga_id"] = cerr.SagaID
		}
		logrus.WithFields(fields).WithField("alert", true).Error("Request left funds unreconciled")
	case domain.CodeInternal:
		msg = "Internal server error"
		logrus.WithFields(fields).Error("Request failed")
	}
	_ = c.Error(err)
	body := gin.H{"success": false, "error": msg, "code": code}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg, "code": domain.CodeValidation})
}

// idempotencyKey returns the caller's key, or fallback() when none was sent
func idempotencyKey(c *gin.Context, fallback func() string) string {
	if key := c.GetHeader(client.IdempotencyHeader); key != "" {
		return key
	}
	if fallback == nil {
		return ""
	}
	return fallback()
}

// pagination reads page and page_size, capping the size at 100
func pagination(c *gin.Context) (page, pageSize, offset int) {
	page = 1      // Default page number
	pageSize = 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size
		}
	}
	return page, pageSize, (page - 1) * pageSize
}

// Page is the paginated list shape of the admin views
type Page[T any] struct {
	Items      []T   `json:"items"`       // Current page
	Page       int   `json:"page"`        // Current page number
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total number of items
	TotalPages int   `json:"total_pages"` // Total pages
	Cached     bool  `json:"cached"`      // Served from cache
}

func newPage[T any](items []T, page, pageSize int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: page, PageSize: pageSize, Total: total, TotalPages: (int(total) + pageSize - 1) / pageSize}
}
