package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/external/yahoo"
	"github.com/signalscan/scanner/internal/news/vault"
	"github.com/signalscan/scanner/internal/scheduler"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/logger"
)

func TestJobSchedulesParse(t *testing.T) {
	parser := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	list := []scheduler.Job{
		NewDailyResetJob(nil, nil, nil, nil, logger.Nop()),
		NewCheckpointJob(nil, nil, "", logger.Nop()),
		NewVaultSweepJob(nil, logger.Nop()),
		NewEnrichmentDecayJob(nil, logger.Nop()),
		NewUniverseRebuildJob(nil, nil, logger.Nop()),
		NewUniverseRefreshJob(nil, nil, 0, logger.Nop()),
	}

	for _, job := range list {
		_, err := parser.Parse(job.Schedule())
		assert.NoError(t, err, job.Name())
	}
}

func TestVaultSweepRemovesExpired(t *testing.T) {
	v := vault.New(time.Hour, logger.Nop())
	now := time.Now()
	v.Insert(contracts.Article{
		Title:     "Old filing",
		URL:       "https://example.com/old",
		Symbols:   []string{"AAA"},
		Published: now.Add(-2 * time.Hour),
		Source:    "polygon",
	}, false, now)
	require.Equal(t, 1, v.Size())

	job := NewVaultSweepJob(v, logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 0, v.Size())
}

func TestEnrichmentDecayDropsLowScores(t *testing.T) {
	store := enrich.NewStore(200, logger.Nop())
	store.CheckGates(snapshot.Snapshot{
		Symbol: "AAA",
		RVOL:   5.5,
		GapPct: 9.0,
	}, time.Now())
	require.Equal(t, 1, store.Len())

	// intraday momentum bonus is 2; one decay pass takes it under the floor
	job := NewEnrichmentDecayJob(store, logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 0, store.Len())
}

type fakeFetcher struct {
	quotes map[string]yahoo.Quote
	chunks [][]string
	fail   map[int]bool
}

func (f *fakeFetcher) FetchQuotes(_ context.Context, symbols []string) ([]yahoo.Quote, error) {
	chunk := len(f.chunks)
	f.chunks = append(f.chunks, symbols)
	if f.fail[chunk] {
		return nil, errors.New("upstream unavailable")
	}

	var out []yahoo.Quote
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func TestUniverseRefreshUpdatesBaselines(t *testing.T) {
	store := universe.NewStore(logger.Nop())
	now := time.Now()
	store.Update("AAA", 1.0, 0, 100, now.Add(-24*time.Hour))
	store.Update("BBB", 2.0, 0, 200, now.Add(-24*time.Hour))

	fetcher := &fakeFetcher{quotes: map[string]yahoo.Quote{
		"AAA": {Symbol: "AAA", PrevClose: 3.60, DayHigh: 4.10, AvgVolume: 2_500_000},
		"BBB": {Symbol: "BBB", PrevClose: 2.40, DayHigh: 2.50, AvgVolume: 1_000_000},
	}}

	job := NewUniverseRefreshJob(fetcher, store, 500, logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	entry, ok := store.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, 3.60, entry.PrevClose)
	assert.EqualValues(t, 2_500_000, entry.AvgVolume)
}

func TestUniverseRefreshSkipsFailedChunk(t *testing.T) {
	store := universe.NewStore(logger.Nop())
	now := time.Now()
	for _, s := range []string{"AAA", "BBB", "CCC"} {
		store.Update(s, 1.0, 0, 100, now)
	}

	fetcher := &fakeFetcher{
		quotes: map[string]yahoo.Quote{
			"CCC": {Symbol: "CCC", PrevClose: 5.00, AvgVolume: 3_000_000},
		},
		fail: map[int]bool{0: true},
	}

	// chunk size 2: first chunk fails, second still lands
	job := NewUniverseRefreshJob(fetcher, store, 2, logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, fetcher.chunks, 2)
	entry, ok := store.Get("CCC")
	require.True(t, ok)
	assert.Equal(t, 5.00, entry.PrevClose)
}
