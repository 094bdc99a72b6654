package main

import (
	"context" // Connection deadline
	"time"    // Timeout

	"wallet_ledger/internal/config"        // Custom import path (Config)
	"wallet_ledger/internal/db"            // Custom import path (Database)
	"wallet_ledger/internal/logging"       // Logger construction
	"wallet_ledger/internal/store/pgstore" // Postgres schema

	"github.com/sirupsen/logrus" // Logging library
)

// Main entry point for migration
func main() {
	cfg, err := config.Load() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.IsProd)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cfg.DBDriver {
	case config.DriverMemory:
		log.Info("Memory store has no schema to migrate")
		return
	case config.DriverPostgres:
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to DB: %v", err)
		}
		defer pool.Close()
		if err := pgstore.Migrate(ctx, pool); err != nil {
			log.Fatalf("%v", err)
		}
	default:
		// Database Source Name (DSN) for MySQL connection
		dsn := db.MySQLDSN(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		gdb, err := db.OpenMySQL(dsn, true)
		if err != nil {
			log.Fatalf("failed to connect to DB: %v", err)
		}
		if err := db.Migrate(gdb.WithContext(ctx)); err != nil {
			log.Fatalf("%v", err)
		}
	}
	log.WithField("driver", cfg.DBDriver).Info("Migration completed successfully")
}
