package api

import (
	"net/http" // HTTP status codes

	"wallet_saga/internal/domain" // Importing domain models
	"wallet_saga/internal/store"  // Notification repository

	"github.com/gin-gonic/gin" // Gin web framework
)

// NotificationRequest represents an incoming notification
type NotificationRequest struct {
	UserID  string `json:"userId" binding:"required"`  // Recipient
	Title   string `json:"title" binding:"required"`   // Short title
	Message string `json:"message" binding:"required"` // Body
}

// SendNotificationHandler stores a notification for a user
func SendNotificationHandler(s *store.Notifications) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NotificationRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "userId, title and message are required")
			return
		}
		n, err := s.Create(c.Request.Context(), req.UserID, req.Title, req.Message)
		if err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, http.StatusCreated, n)
	}
}

// ListNotificationsHandler returns a user's notifications, newest first
func ListNotificationsHandler(s *store.Notifications) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.ListByUser(c.Request.Context(), c.Param("id")) // Shares the wildcard with /:id/read
		if err != nil {
			fail(c, err, nil)
			return
		}
		if list == nil {
			list = []domain.Notification{}
		}
		ok(c, http.StatusOK, list)
	}
}

// MarkReadHandler flags one notification as read
func MarkReadHandler(s *store.Notifications) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.MarkRead(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, http.StatusOK, n)
	}
}
