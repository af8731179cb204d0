// Package postgres provides a Postgres-backed report tier.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool this store needs, letting tests
// substitute pgxmock (grounded on the teacher's
// internal/storage/postgres/retrieval_store_test.go).
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ReportStore mirrors report JSON into a `job_reports` table.
type ReportStore struct {
	pool PgxPool
}

// NewReportStore opens a connection pool for dsn.
func NewReportStore(ctx context.Context, dsn string) (*ReportStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &ReportStore{pool: pool}, nil
}

// NewReportStoreWithPool injects an existing pool (or pgxmock double).
func NewReportStoreWithPool(pool PgxPool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Close releases the underlying pool, when it supports it.
func (s *ReportStore) Close() {
	if closer, ok := s.pool.(interface{ Close() }); ok {
		closer.Close()
	}
}

// PutReport implements store.SecondaryTier.
func (s *ReportStore) PutReport(ctx context.Context, jobID string, data []byte) (string, error) {
	query := `
		INSERT INTO job_reports (job_id, report, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE
		SET report = EXCLUDED.report, updated_at = EXCLUDED.updated_at;
	`
	if _, err := s.pool.Exec(ctx, query, jobID, data, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("upsert job report: %w", err)
	}
	return fmt.Sprintf("postgres:job_reports/%s", jobID), nil
}
