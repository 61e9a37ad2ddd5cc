// Package storage persists conversion job history. The repository speaks
// through a narrow DB interface so tests can run it on sqlite in memory
// while deployments choose sqlite or postgres by config.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meshforge/cad-engine/internal/config"
)

// Open connects to the configured database and verifies the connection.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.SQLite.Path
		if dsn != ":memory:" && cfg.SQLite.JournalMode != "" {
			dsn = fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=5000", dsn, cfg.SQLite.JournalMode)
		}
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// sqlite serializes writers; one connection avoids lock churn.
		maxConns := cfg.SQLite.MaxOpenConns
		if maxConns <= 0 {
			maxConns = 1
		}
		db.SetMaxOpenConns(maxConns)

	case "postgres":
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}
