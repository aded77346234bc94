// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, plus schema migrations.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/konsul-app/konsul-backend/internal/config"
	"github.com/konsul-app/konsul-backend/internal/domain"
)

// Open connects to the database selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DBConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg.URL)
	case "sqlite", "":
		return OpenSQLite(cfg.Path)
	}
	return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := instrument(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres opens a pooled PostgreSQL connection and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := instrument(db); err != nil {
		return nil, err
	}
	return db, nil
}

// instrument registers the OpenTelemetry GORM plugin so queries show up as
// child spans of the request trace.
func instrument(db *gorm.DB) error {
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return fmt.Errorf("gorm tracing plugin: %w", err)
	}
	return nil
}

// AutoMigrate creates or updates every table the backend owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Workspace{},
		&domain.Agent{},
		&domain.Channel{},
		&domain.ChannelKey{},
		&domain.Intent{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.InboundReceipt{},
		&domain.IntentRun{},
	)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
