package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"submitter/internal/models"
)

// SQLiteJournal stores records in a SQLite database. Timestamps are kept as
// Unix nanoseconds.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (and creates if needed) the database at dsn.
func NewSQLiteJournal(dsn string) (*SQLiteJournal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for SQLite journal")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := migrate(context.Background(), db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

// Record inserts record
func (s *SQLiteJournal) Record(ctx context.Context, record *models.SubmissionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, doc_id, outcome, status_code, error, started_at, finished_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.DocID, record.Outcome, record.StatusCode, record.Error,
		record.StartedAt.UnixNano(), record.FinishedAt.UnixNano(), int64(record.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission %s: %w", record.ID, err)
	}
	return nil
}

// List returns matching records ordered by start time
func (s *SQLiteJournal) List(ctx context.Context, filter Filter) ([]*models.SubmissionRecord, error) {
	where, args := whereClause(filter,
		func(int) string { return "?" },
		func(t time.Time) any { return t.UnixNano() },
	)
	query := `SELECT id, doc_id, outcome, status_code, error, started_at, finished_at, duration_ns
		FROM submissions` + where + ` ORDER BY started_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	result := make([]*models.SubmissionRecord, 0)
	for rows.Next() {
		var (
			r                   models.SubmissionRecord
			started, finished   int64
			durationNanoseconds int64
		)
		if err := rows.Scan(&r.ID, &r.DocID, &r.Outcome, &r.StatusCode, &r.Error, &started, &finished, &durationNanoseconds); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		r.Duration = time.Duration(durationNanoseconds)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return result, nil
}

// Prune deletes records that finished before the cutoff
func (s *SQLiteJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE finished_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune submissions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}
