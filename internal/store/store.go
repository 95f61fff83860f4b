// Package store holds the gorm repositories each service owns.
package store

import (
	"errors"
	"fmt"

	"wallet_saga/internal/domain"

	"gorm.io/gorm"
)

// notFound converts gorm's sentinel into the domain one.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, what, id)
	}
	return fmt.Errorf("find %s: %w", what, err)
}
