package db

import (
	"fmt"

	"wallet_saga/internal/config"

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM
	"gorm.io/driver/sqlite"   // SQLite driver for GORM, local runs and tests
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"
)

// DSN builds the data source name for the configured driver.
func DSN(cfg *config.Config) (string, error) {
	switch cfg.DBDriver {
	case "mysql":
		port := cfg.DBPort
		if port == "" {
			port = "3306"
		}
		return cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + port + ")/" + cfg.DBName + "?parseTime=true", nil
	case "postgres":
		port := cfg.DBPort
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, port, cfg.DBUser, cfg.DBPassword, cfg.DBName), nil
	case "sqlite":
		return "file:" + cfg.DBName + ".db?_busy_timeout=5000&_journal_mode=WAL", nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// Open connects to the service database with a bounded connection pool.
func Open(cfg *config.Config) (*gorm.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}
	gcfg := &gorm.Config{TranslateError: true}
	if cfg.IsProd {
		gcfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := cfg.DBMaxOpen
	if cfg.DBDriver == "sqlite" {
		// SQLite allows a single writer.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	return gdb, nil
}

// OpenMemory returns a private in-memory SQLite database migrated for service.
// name must be unique per database.
func OpenMemory(name, service string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(gdb, service); err != nil {
		return nil, err
	}
	return gdb, nil
}
