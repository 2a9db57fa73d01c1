package vault

import (
	"context"
	"fmt"

	"github.com/signalscan/scanner/pkg/database"
	"github.com/signalscan/scanner/pkg/logger"
)

// Repository archives vault entries to Postgres for offline review.
// The JSON checkpoint stays authoritative; archival failures are logged
// and never block article processing.
type Repository struct {
	db  *database.DB
	log *logger.Logger
}

// NewRepository creates an article archive. db may be nil, in which case
// every call is a no-op.
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Enabled reports whether archival is configured
func (r *Repository) Enabled() bool {
	return r != nil && r.db != nil
}

// SaveEntry records one vault entry. Re-saving the same dedup key updates
// the source, mirroring the in-memory upgrade rule.
func (r *Repository) SaveEntry(ctx context.Context, key string, e Entry) error {
	if !r.Enabled() {
		return nil
	}

	query := `
		INSERT INTO scanner.news_vault (dedup_key, symbol, title, url, published, source, breaking, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedup_key) DO UPDATE SET source = EXCLUDED.source
	`

	if _, err := r.db.Pool.Exec(ctx, query,
		key, e.Symbol, e.Title, e.URL, e.Published, e.Source, e.Breaking, e.Added); err != nil {
		return fmt.Errorf("save vault entry: %w", err)
	}
	return nil
}
