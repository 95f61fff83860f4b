package store

import (
	"context"
	"fmt"

	"wallet_saga/internal/domain"

	"gorm.io/gorm"
)

// Credits persists credit records.
type Credits struct {
	db *gorm.DB
}

// NewCredits creates the credit repository.
func NewCredits(db *gorm.DB) *Credits { return &Credits{db: db} }

// Create inserts c as active.
func (s *Credits) Create(ctx context.Context, c *domain.Credit) error {
	c.Status = domain.CreditActive
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create credit: %w", err)
	}
	return nil
}

// Transition moves a credit from one status to another as a single
// conditional update. It fails with ErrConflict when the credit is no longer in from.
func (s *Credits) Transition(ctx context.Context, id string, from, to domain.CreditStatus) (*domain.Credit, error) {
	return s.transition(ctx, id, from, map[string]any{"status": to})
}

// MarkPaid settles a credit on behalf of the repayment saga sagaID. Only one
// caller can win; the others get ErrConflict.
func (s *Credits) MarkPaid(ctx context.Context, id string, from domain.CreditStatus, sagaID string) (*domain.Credit, error) {
	return s.transition(ctx, id, from, map[string]any{"status": domain.CreditPaid, "paid_by": sagaID})
}

func (s *Credits) transition(ctx context.Context, id string, from domain.CreditStatus, updates map[string]any) (*domain.Credit, error) {
	res := s.db.WithContext(ctx).Model(&domain.Credit{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update credit: %w", res.Error)
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return c, fmt.Errorf("%w: credit %s is %s", domain.ErrConflict, id, c.Status)
	}
	return c, nil
}

// Get loads one credit.
func (s *Credits) Get(ctx context.Context, id string) (*domain.Credit, error) {
	var c domain.Credit
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err, "credit", id)
	}
	return &c, nil
}

// BySaga loads the credit created by a saga, if any.
func (s *Credits) BySaga(ctx context.Context, sagaID string) (*domain.Credit, bool, error) {
	var c domain.Credit
	if err := s.db.WithContext(ctx).Where("saga_id = ?", sagaID).Limit(1).Find(&c).Error; err != nil {
		return nil, false, fmt.Errorf("find credit by saga: %w", err)
	}
	return &c, c.ID != "", nil
}

// ListByUser returns a user's credits, newest first.
func (s *Credits) ListByUser(ctx context.Context, userID string) ([]domain.Credit, error) {
	var out []domain.Credit
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return out, nil
}
