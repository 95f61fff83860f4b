package store

import (
	"context"
	"fmt"
	"time"

	"wallet_saga/internal/domain"

	"gorm.io/gorm"
)

// Sagas is the durable saga log.
type Sagas struct {
	db *gorm.DB
}

// NewSagas creates the saga log repository.
func NewSagas(db *gorm.DB) *Sagas { return &Sagas{db: db} }

// Begin records the intent before any side effect happens.
func (s *Sagas) Begin(ctx context.Context, r *domain.SagaRecord) error {
	r.State = domain.SagaStarted
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("begin saga: %w", err)
	}
	return nil
}

// Advance moves r to state, persisting RefID, ExternalRef and LastError alongside.
// Terminal records are never moved again.
func (s *Sagas) Advance(ctx context.Context, r *domain.SagaRecord, state domain.SagaState) error {
	res := s.db.WithContext(ctx).Model(&domain.SagaRecord{}).
		Where("id = ? AND state NOT IN ?", r.ID, domain.TerminalSagaStates).
		Updates(map[string]any{
			"state":        state,
			"ref_id":       r.RefID,
			"external_ref": r.ExternalRef,
			"last_error":   r.LastError,
		})
	if res.Error != nil {
		return fmt.Errorf("advance saga %s: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: saga %s is already terminal", domain.ErrConflict, r.ID)
	}
	r.State = state
	return nil
}

// Get loads one saga record.
func (s *Sagas) Get(ctx context.Context, id string) (*domain.SagaRecord, error) {
	var r domain.SagaRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFound(err, "saga", id)
	}
	return &r, nil
}

// Stale returns non-terminal sagas not touched since before.
func (s *Sagas) Stale(ctx context.Context, before time.Time, limit int) ([]domain.SagaRecord, error) {
	var out []domain.SagaRecord
	err := s.db.WithContext(ctx).
		Where("state IN ? AND updated_at < ?", domain.NonTerminalSagaStates, before).
		Order("updated_at asc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list stale sagas: %w", err)
	}
	return out, nil
}

// List pages through sagas, optionally filtered by state.
func (s *Sagas) List(ctx context.Context, state domain.SagaState, limit, offset int) ([]domain.SagaRecord, int64, error) {
	q := func() *gorm.DB {
		db := s.db.WithContext(ctx).Model(&domain.SagaRecord{})
		if state != "" {
			db = db.Where("state = ?", state)
		}
		return db
	}
	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count sagas: %w", err)
	}
	var out []domain.SagaRecord
	if err := q().Order("updated_at desc").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list sagas: %w", err)
	}
	return out, total, nil
}
