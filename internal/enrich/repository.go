package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/signalscan/scanner/pkg/database"
	"github.com/signalscan/scanner/pkg/logger"
)

// Repository archives promotion events to Postgres for offline review.
// The JSON checkpoint stays authoritative; archival failures are logged
// and never block the pipeline.
type Repository struct {
	db  *database.DB
	log *logger.Logger
}

// NewRepository creates a promotion archive. db may be nil, in which case
// every call is a no-op.
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Enabled reports whether archival is configured
func (r *Repository) Enabled() bool {
	return r != nil && r.db != nil
}

// SavePromotion records one promotion event
func (r *Repository) SavePromotion(ctx context.Context, symbol, reason string, score float64, at time.Time) error {
	if !r.Enabled() {
		return nil
	}

	query := `
		INSERT INTO scanner.promotions (symbol, reason, score, promoted_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Pool.Exec(ctx, query, symbol, reason, score, at); err != nil {
		return fmt.Errorf("save promotion: %w", err)
	}
	return nil
}

// SaveChannelHit records one channel entry event
func (r *Repository) SaveChannelHit(ctx context.Context, symbol, channel string, at time.Time) error {
	if !r.Enabled() {
		return nil
	}

	query := `
		INSERT INTO scanner.channel_hits (symbol, channel, hit_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.Pool.Exec(ctx, query, symbol, channel, at); err != nil {
		return fmt.Errorf("save channel hit: %w", err)
	}
	return nil
}
