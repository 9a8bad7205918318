package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS transform_usage (
	id BIGSERIAL PRIMARY KEY,
	cache_key TEXT NOT NULL,
	source_bytes INTEGER NOT NULL,
	output_bytes INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUsageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure transform_usage schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) CreateUsageLog(ctx context.Context, usage UsageLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transform_usage (cache_key, source_bytes, output_bytes, content_type, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		usage.CacheKey,
		usage.SourceBytes,
		usage.OutputBytes,
		usage.ContentType,
		usage.ComputeTimeMS,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}

	return nil
}
