package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet_saga/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Users persists registered users.
type Users struct {
	db *gorm.DB
}

// NewUsers creates the user repository.
func NewUsers(db *gorm.DB) *Users { return &Users{db: db} }

// Create inserts a user with a lower-cased unique email.
func (s *Users) Create(ctx context.Context, email, name string) (*domain.User, error) {
	u := &domain.User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email)), Name: strings.TrimSpace(name)}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email %s already registered", domain.ErrConflict, u.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Delete removes a user; used to compensate a failed registration.
func (s *Users) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{}).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Get loads one user.
func (s *Users) Get(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// List returns a page of users.
func (s *Users) List(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	var total int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	var out []domain.User
	if err := db.Order("created_at desc").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return out, total, nil
}
