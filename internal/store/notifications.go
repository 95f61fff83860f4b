package store

import (
	"context"
	"fmt"

	"wallet_saga/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notifications persists user notifications.
type Notifications struct {
	db *gorm.DB
}

// NewNotifications creates the notification repository.
func NewNotifications(db *gorm.DB) *Notifications { return &Notifications{db: db} }

// Create stores an unread notification.
func (s *Notifications) Create(ctx context.Context, userID, title, message string) (*domain.Notification, error) {
	n := &domain.Notification{ID: uuid.NewString(), UserID: userID, Title: title, Message: message}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// ListByUser returns a user's notifications, newest first.
func (s *Notifications) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification as read.
func (s *Notifications) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.Notification{}).Where("id = ?", id).Update("read", true).Error; err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	var n domain.Notification
	if err := db.Where("id = ?", id).First(&n).Error; err != nil {
		return nil, notFound(err, "notification", id)
	}
	return &n, nil
}
