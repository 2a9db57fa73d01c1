package enrich

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/pkg/logger"
)

var (
	premarket = time.Date(2026, 3, 2, 7, 0, 0, 0, session.Eastern)
	intraday  = time.Date(2026, 3, 2, 11, 0, 0, 0, session.Eastern)
)

func newStore() *Store {
	return NewStore(200, logger.Nop())
}

func TestCheckGatesPremarketSpike(t *testing.T) {
	s := newStore()

	reason := s.CheckGates(snapshot.Snapshot{
		Symbol: "SPKE",
		RVOL:   8.5,
		GapPct: -12.0, // gate uses |gap|
		Volume: 80_000,
	}, premarket)

	assert.Equal(t, ReasonPremarketSpike, reason)

	rec, ok := s.Get("SPKE")
	require.True(t, ok)
	assert.Equal(t, 3.0, rec.Score)
	assert.Equal(t, 1, rec.TotalHits)
}

func TestCheckGatesIntradayMomentum(t *testing.T) {
	s := newStore()

	reason := s.CheckGates(snapshot.Snapshot{
		Symbol: "MOMO",
		RVOL:   5.5,
		GapPct: 9.0,
	}, intraday)

	assert.Equal(t, ReasonIntradayMomentum, reason)
}

func TestCheckGatesHODSprint(t *testing.T) {
	s := newStore()

	reason := s.CheckGates(snapshot.Snapshot{
		Symbol:   "SPRT",
		RVOL:     6.5,
		GapPct:   6.0,
		FloatM:   40,
		IsNewHOD: true,
	}, intraday)

	assert.Equal(t, ReasonHODSprint, reason)
}

func TestCheckGatesNoTrigger(t *testing.T) {
	s := newStore()

	reason := s.CheckGates(snapshot.Snapshot{
		Symbol: "FLAT",
		RVOL:   1.0,
		GapPct: 1.0,
	}, intraday)

	assert.Equal(t, "", reason)
	assert.Equal(t, 0, s.Len())
}

func TestRepeatedGateAccumulates(t *testing.T) {
	s := newStore()
	snap := snapshot.Snapshot{Symbol: "ACCU", RVOL: 6.0, GapPct: 9.0}

	s.CheckGates(snap, intraday)
	s.CheckGates(snap, intraday)

	rec, _ := s.Get("ACCU")
	assert.Equal(t, 4.0, rec.Score)
	assert.Equal(t, 2, rec.TotalHits)
}

func TestRecordChannelHit(t *testing.T) {
	s := newStore()
	s.CheckGates(snapshot.Snapshot{Symbol: "CHAN", RVOL: 6.0, GapPct: 9.0}, intraday) // score 2

	s.RecordChannelHit("CHAN", "HOD", intraday)
	s.RecordChannelHit("CHAN", "RunUp", intraday)
	s.RecordChannelHit("CHAN", "HOD", intraday) // repeat channel, still scores

	rec, _ := s.Get("CHAN")
	assert.Equal(t, 2.0+2+1+2, rec.Score)
	assert.ElementsMatch(t, []string{"HOD", "RunUp"}, rec.ChannelsHit)

	// Unknown symbols are not created by channel hits
	s.RecordChannelHit("GHOST", "HOD", intraday)
	_, ok := s.Get("GHOST")
	assert.False(t, ok)
}

func TestDecayEvictsStaleRecords(t *testing.T) {
	s := newStore()
	s.CheckGates(snapshot.Snapshot{Symbol: "STALE", RVOL: 6.0, GapPct: 9.0}, intraday)
	for i := 0; i < 20; i++ {
		s.RecordChannelHit("STALE", "HOD", intraday)
	}

	// A record whose score never receives a fresh bonus must eventually go
	for i := 0; i < 50 && s.Len() > 0; i++ {
		s.Decay()
	}
	assert.Equal(t, 0, s.Len(), "repeated decay must evict every unboosted record")
}

func TestCullNeverExceedsCapacity(t *testing.T) {
	s := NewStore(10, logger.Nop())

	for i := 0; i < 50; i++ {
		snap := snapshot.Snapshot{
			Symbol: fmt.Sprintf("S%02d", i),
			RVOL:   6.0,
			GapPct: 9.0,
		}
		s.CheckGates(snap, intraday)
		for j := 0; j <= i; j++ {
			s.RecordChannelHit(snap.Symbol, "RunUp", intraday)
		}
	}

	assert.Equal(t, 10, s.Len(), "cull must hold the store at capacity")

	// A fresh promotion enters at its gate bonus, which is the lowest score
	// in a full store of boosted incumbents, so it is culled before its
	// channel hits can land. Decay is what eventually frees seats.
	_, ok := s.Get("S05")
	assert.True(t, ok)
	_, ok = s.Get("S49")
	assert.False(t, ok)
}

func TestWatchSymbolsOrderedByScore(t *testing.T) {
	s := newStore()
	s.CheckGates(snapshot.Snapshot{Symbol: "LOW", RVOL: 6.0, GapPct: 9.0}, intraday)
	s.CheckGates(snapshot.Snapshot{Symbol: "HIGH", RVOL: 6.0, GapPct: 9.0}, intraday)
	s.RecordChannelHit("HIGH", "HOD", intraday)

	assert.Equal(t, []string{"HIGH", "LOW"}, s.WatchSymbols())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enriched.json")

	s := newStore()
	s.CheckGates(snapshot.Snapshot{Symbol: "PERS", RVOL: 6.0, GapPct: 9.0}, intraday)
	require.NoError(t, s.Save(path))

	restored := newStore()
	require.NoError(t, restored.Load(path))

	rec, ok := restored.Get("PERS")
	require.True(t, ok)
	assert.Equal(t, 2.0, rec.Score)
	assert.Equal(t, ReasonIntradayMomentum, rec.LastReason)
}

func TestResetDailyHits(t *testing.T) {
	s := newStore()
	s.CheckGates(snapshot.Snapshot{Symbol: "DAY", RVOL: 6.0, GapPct: 9.0}, intraday)

	s.ResetDailyHits()

	rec, _ := s.Get("DAY")
	assert.Equal(t, 0, rec.HitsToday)
	assert.Equal(t, 1, rec.TotalHits, "total hits survive the daily reset")
}
