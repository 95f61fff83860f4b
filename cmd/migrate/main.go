package main

import (
	"wallet_saga/internal/config" // Custom import path (Config)
	"wallet_saga/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus"
)

// Main entry point for migration of the tables owned by SERVICE
func main() {
	cfg := config.LoadConfig() // Load configuration

	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb, cfg.Service); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
}
