package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"submitter/internal/models"
)

// PostgresJournal stores records in PostgreSQL through a pgx connection pool.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal connects to dsn and ensures the schema exists.
func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL journal")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// goose needs database/sql; closing the wrapper leaves the pool open.
	db := stdlib.OpenDBFromPool(pool)
	_, err = migrate(ctx, db, goose.DialectPostgres, "postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresJournal{pool: pool}, nil
}

// Record inserts record
func (p *PostgresJournal) Record(ctx context.Context, record *models.SubmissionRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO submissions (id, doc_id, outcome, status_code, error, started_at, finished_at, duration_ns)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.DocID, record.Outcome, record.StatusCode, record.Error,
		record.StartedAt, record.FinishedAt, int64(record.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission %s: %w", record.ID, err)
	}
	return nil
}

// List returns matching records ordered by start time
func (p *PostgresJournal) List(ctx context.Context, filter Filter) ([]*models.SubmissionRecord, error) {
	where, args := whereClause(filter,
		func(n int) string { return fmt.Sprintf("$%d", n) },
		func(t time.Time) any { return t },
	)
	query := `SELECT id, doc_id, outcome, status_code, error, started_at, finished_at, duration_ns
		FROM submissions` + where + ` ORDER BY started_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.SubmissionRecord, error) {
		var (
			r        models.SubmissionRecord
			duration int64
		)
		if err := row.Scan(&r.ID, &r.DocID, &r.Outcome, &r.StatusCode, &r.Error, &r.StartedAt, &r.FinishedAt, &duration); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(duration)
		return &r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan submissions: %w", err)
	}
	return result, nil
}

// Prune deletes records that finished before the cutoff
func (p *PostgresJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM submissions WHERE finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune submissions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the database connection
func (p *PostgresJournal) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool
func (p *PostgresJournal) Close() error {
	p.pool.Close()
	return nil
}
