package store

import (
	"context"
	"fmt"

	"wallet_saga/internal/domain"

	"gorm.io/gorm"
)

// Payments persists payment records.
type Payments struct {
	db *gorm.DB
}

// NewPayments creates the payment repository.
func NewPayments(db *gorm.DB) *Payments { return &Payments{db: db} }

// Create inserts p in the pending state.
func (s *Payments) Create(ctx context.Context, p *domain.Payment) error {
	p.Status = domain.PaymentPending
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Finish moves a pending payment to a terminal status, exactly once.
func (s *Payments) Finish(ctx context.Context, id string, status domain.PaymentStatus, externalRef *string) (*domain.Payment, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal payment status", domain.ErrValidation, status)
	}
	updates := map[string]any{"status": status}
	if externalRef != nil {
		updates["external_ref"] = *externalRef
	}
	res := s.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("finish payment: %w", res.Error)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && p.Status != status {
		return p, fmt.Errorf("%w: payment %s is already %s", domain.ErrConflict, id, p.Status)
	}
	return p, nil
}

// Get loads one payment.
func (s *Payments) Get(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &p, nil
}

// BySaga loads the payment created by a saga, if any.
func (s *Payments) BySaga(ctx context.Context, sagaID string) (*domain.Payment, bool, error) {
	var p domain.Payment
	if err := s.db.WithContext(ctx).Where("saga_id = ?", sagaID).Limit(1).Find(&p).Error; err != nil {
		return nil, false, fmt.Errorf("find payment by saga: %w", err)
	}
	return &p, p.ID != "", nil
}

// ListByUser returns a user's payments, newest first.
func (s *Payments) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	var out []domain.Payment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}
