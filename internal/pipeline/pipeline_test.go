package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/events"
	"github.com/signalscan/scanner/internal/external/yahoo"
	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

func newManager(t *testing.T, dir string) (*Manager, *universe.Store, *snapshot.Store, *enrich.Store) {
	t.Helper()

	cfg := scannerConfig()
	cfg.Tier2Window = time.Millisecond

	uni := universe.NewStore(logger.Nop())
	snaps := snapshot.NewStore(logger.Nop())
	enriched := enrich.NewStore(200, logger.Nop())

	source := &fakeQuoteSource{quotes: map[string]yahoo.Quote{}}
	tier1 := NewTier1(cfg, dir, source, uni, enriched, snaps, logger.Nop())
	tier2 := NewTier2(cfg, dir, &fakeQuoteStreamer{}, tier1.Shortlists(), logger.Nop())
	tier3 := NewTier3(
		cfg,
		&fakeTickStreamer{},
		tier2.Validated(),
		snaps,
		snapshot.NewWindowSet(cfg.WindowSpan),
		categorize.NewEngine(config.GatesConfig{}, nil),
		categorize.NewMembership(),
		enriched,
		events.NewBus(16),
		nil,
		session.SystemClock{},
		logger.Nop(),
	)

	return NewManager(tier1, tier2, tier3, uni, snaps, enriched, dir, logger.Nop()), uni, snaps, enriched
}

func TestManagerCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()

	mgr, uni, snaps, _ := newManager(t, dir)
	uni.Rebuild([]string{"AAA", "BBB"})
	price := 4.0
	snaps.Apply("AAA", snapshot.Patch{Price: &price}, time.Now())
	mgr.Checkpoint()

	assert.FileExists(t, filepath.Join(dir, universeFile))
	assert.FileExists(t, filepath.Join(dir, snapshotsFile))
	assert.FileExists(t, filepath.Join(dir, enrichedFile))

	restored, uni2, snaps2, _ := newManager(t, dir)
	restored.restore()

	assert.ElementsMatch(t, []string{"AAA", "BBB"}, uni2.Symbols())
	snap, ok := snaps2.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, 4.0, snap.Price)
}

func TestManagerStartStop(t *testing.T) {
	mgr, _, _, _ := newManager(t, t.TempDir())

	mgr.Start(context.Background())
	mgr.Stop()

	// shutdown flushed all three stores
	assert.FileExists(t, filepath.Join(mgr.dataDir, universeFile))
}

func TestManagerDailyReset(t *testing.T) {
	mgr, uni, _, enriched := newManager(t, t.TempDir())

	now := time.Now()
	uni.Update("AAA", 3.60, 4.20, 2_000_000, now)
	snap := snapshot.Snapshot{Symbol: "AAA", Price: 4.0, GapPct: 12.0, RVOL: 9.0, Volume: 100_000}
	require.NotEmpty(t, enriched.CheckGates(snap, now))

	mgr.DailyReset(now)

	entry, ok := uni.Get("AAA")
	require.True(t, ok)
	assert.Zero(t, entry.DayHigh)

	rec, ok := enriched.Get("AAA")
	require.True(t, ok)
	assert.Zero(t, rec.HitsToday)
}

func TestManagerTriggerReachesTier1(t *testing.T) {
	mgr, _, _, _ := newManager(t, t.TempDir())

	mgr.Trigger("NEWZ")
	assert.Contains(t, mgr.tier1.buildScanList(), "NEWZ")
}
