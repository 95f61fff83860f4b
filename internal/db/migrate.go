package db

import (
	"fmt"

	"wallet_saga/internal/config" // Service names
	"wallet_saga/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"
	"gorm.io/gorm" // GORM ORM library
)

// ModelsFor returns the tables owned by a service. Services never share tables.
func ModelsFor(service string) ([]any, error) {
	switch service {
	case config.ServiceUser:
		return []any{&domain.User{}}, nil
	case config.ServiceWallet:
		return []any{&domain.Wallet{}, &domain.LedgerEntry{}}, nil
	case config.ServicePayment:
		return []any{&domain.Payment{}, &domain.SagaRecord{}}, nil
	case config.ServiceCredit:
		return []any{&domain.Credit{}, &domain.SagaRecord{}}, nil
	case config.ServiceNotification:
		return []any{&domain.Notification{}}, nil
	}
	return nil, fmt.Errorf("unknown service %q", service)
}

// Migrate performs automatic migration for the schema owned by service
func Migrate(db *gorm.DB, service string) error {
	models, err := ModelsFor(service)
	if err != nil {
		return err
	}
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate %s: %w", service, err)
	}
	logrus.WithField("service", service).Info("Migration completed.") // Log successful migration
	return nil
}
