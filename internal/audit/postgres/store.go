package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/starquery/starquery/internal/audit"
)

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("audit dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}

	return db, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS query_audit (
	id            BIGSERIAL PRIMARY KEY,
	sql_text      TEXT NOT NULL,
	allowed       BOOLEAN NOT NULL,
	reject_reason TEXT NOT NULL DEFAULT '',
	failure_kind  TEXT NOT NULL DEFAULT '',
	row_count     INTEGER NOT NULL DEFAULT 0,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	cache_hit     BOOLEAN NOT NULL DEFAULT FALSE,
	occurred_at   TIMESTAMPTZ NOT NULL
)`

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, entry audit.Entry) error {
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_audit (sql_text, allowed, reject_reason, failure_kind, row_count, duration_ms, cache_hit, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.SQL,
		entry.Allowed,
		entry.RejectReason,
		entry.FailureKind,
		entry.RowCount,
		entry.Duration.Milliseconds(),
		entry.CacheHit,
		occurredAt,
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("audit db unreachable: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
