package journal

import (
	"context"
	"fmt"

	"submitter/internal/models"
)

// New creates the journal backend selected by config.
// Supported backends:
//   - memory: in-process records (for testing/development)
//   - sqlite: local SQLite file
//   - postgres: PostgreSQL database
func New(ctx context.Context, config models.JournalConfig) (Journal, error) {
	switch config.Type {
	case models.JournalTypeMemory:
		return NewMemoryJournal(), nil
	case models.JournalTypeSQLite:
		return NewSQLiteJournal(config.DSN)
	case models.JournalTypePostgres:
		return NewPostgresJournal(ctx, config.DSN)
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", config.Type)
	}
}

// SupportedTypes returns every journal type New accepts
func SupportedTypes() []string {
	return []string{models.JournalTypeMemory, models.JournalTypeSQLite, models.JournalTypePostgres}
}
