package db

import (
	"fmt"  // DSN formatting
	"time" // Pool timeouts

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger
)

// MySQLDSN builds the Data Source Name for the MySQL driver
func MySQLDSN(user, password, host, port, name string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC", user, password, host, port, name)
}

// Config returns the GORM configuration shared by every dialect
func Config(verbose bool) *gorm.Config {
	level := logger.Warn // Only slow queries and errors by default
	if verbose {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.New(logrus.StandardLogger(), logger.Config{SlowThreshold: 200 * time.Millisecond, LogLevel: level}),
		TranslateError: true, // Map unique violations to gorm.ErrDuplicatedKey
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// OpenMySQL connects to MySQL and configures the connection pool
func OpenMySQL(dsn string, verbose bool) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), Config(verbose))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	sqlDB, err := db.DB() // Underlying database/sql pool
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)                 // Cap concurrent connections
	sqlDB.SetMaxIdleConns(25)                 // Keep warm connections
	sqlDB.SetConnMaxLifetime(5 * time.Minute) // Recycle connections
	return db, nil
}
