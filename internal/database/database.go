// Package database opens the relational store and keeps its schema
// current. Postgres is the production driver; sqlite3 backs local
// development and tests.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/searchdeck/searchdeck/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// DB wraps the sql.DB handle together with the dialect it speaks.
type DB struct {
	*sql.DB
	Dialect string
}

// driverName maps the configured dialect to the registered driver.
func driverName(dialect string) string {
	if dialect == "postgres" {
		return "pgx"
	}
	return dialect
}

// Open connects to the configured database with a bounded retry loop;
// startup races with the database container are common in deployment.
func Open(cfg *config.Config, log *slog.Logger) (*DB, error) {
	dialect := cfg.Database.Driver

	var (
		db      *sql.DB
		lastErr error
	)
	for i := 0; i < cfg.Database.MaxRetries; i++ {
		var err error
		db, err = sql.Open(driverName(dialect), cfg.Database.DSN)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		log.Warn("database connection attempt failed",
			"attempt", i+1, "max", cfg.Database.MaxRetries, "error", err)
		time.Sleep(time.Duration(cfg.Database.RetryDelay) * time.Second)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", cfg.Database.MaxRetries, lastErr)
	}

	if dialect == "sqlite3" {
		// SQLite supports a single writer; a larger pool just
		// trades errors for lock contention.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Migrate runs the embedded goose migrations for the active dialect.
func (d *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(d.Dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, d.DB, "migrations/"+d.Dialect); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
