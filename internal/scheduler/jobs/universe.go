package jobs

import (
	"context"
	"time"

	"github.com/signalscan/scanner/internal/external/yahoo"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/logger"
)

// UniverseRebuildJob refreshes the symbol universe from the exchange
// listing directories over the weekend, when listings actually change
type UniverseRebuildJob struct {
	directory *universe.Directory
	store     *universe.Store
	logger    *logger.Logger
}

// NewUniverseRebuildJob creates a new universe rebuild job
func NewUniverseRebuildJob(directory *universe.Directory, store *universe.Store, log *logger.Logger) *UniverseRebuildJob {
	return &UniverseRebuildJob{
		directory: directory,
		store:     store,
		logger:    log,
	}
}

// Name returns the job name
func (j *UniverseRebuildJob) Name() string {
	return "universe_rebuild"
}

// Schedule returns the cron schedule (03:30 ET every Saturday)
func (j *UniverseRebuildJob) Schedule() string {
	return "0 30 3 * * 6"
}

// Run fetches the listings and rebuilds the universe
func (j *UniverseRebuildJob) Run(ctx context.Context) error {
	symbols, err := j.directory.FetchSymbols(ctx)
	if err != nil {
		return err
	}

	added, removed := j.store.Rebuild(symbols)
	j.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"added":   added,
		"removed": removed,
	}).Info("Universe rebuilt")

	return nil
}

// QuoteFetcher pulls one bulk chunk of quotes
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]yahoo.Quote, error)
}

// UniverseRefreshJob re-seeds every symbol's previous close and average
// volume from the bulk quote endpoint before the premarket opens, so the
// first Tier-1 sweep of the day filters on fresh baselines.
type UniverseRefreshJob struct {
	client    QuoteFetcher
	store     *universe.Store
	chunkSize int
	logger    *logger.Logger
}

// NewUniverseRefreshJob creates a new universe refresh job
func NewUniverseRefreshJob(client QuoteFetcher, store *universe.Store, chunkSize int, log *logger.Logger) *UniverseRefreshJob {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &UniverseRefreshJob{
		client:    client,
		store:     store,
		chunkSize: chunkSize,
		logger:    log,
	}
}

// Name returns the job name
func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (03:45 ET every day)
func (j *UniverseRefreshJob) Schedule() string {
	return "0 45 3 * * *"
}

// Run sweeps the universe in bulk chunks, updating baselines. Chunk
// failures are logged and skipped so one bad batch never blocks the rest.
func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	symbols := j.store.Symbols()
	now := time.Now()
	updated := 0

	for start := 0; start < len(symbols); start += j.chunkSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		end := start + j.chunkSize
		if end > len(symbols) {
			end = len(symbols)
		}

		quotes, err := j.client.FetchQuotes(ctx, symbols[start:end])
		if err != nil {
			j.logger.WithError(err).
				WithField("chunk", start/j.chunkSize).
				Warn("Universe refresh chunk failed")
			continue
		}

		for _, q := range quotes {
			j.store.Update(q.Symbol, q.PrevClose, q.DayHigh, q.AvgVolume, now)
			updated++
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"updated": updated,
	}).Info("Universe baselines refreshed")

	return nil
}
