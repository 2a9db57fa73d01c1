package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/pkg/logger"
)

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }
func b(v bool) *bool       { return &v }

// midSession is 12:45 ET, exactly half the trading day elapsed
var midSession = time.Date(2026, 3, 2, 12, 45, 0, 0, session.Eastern)

func TestApplyMergesFields(t *testing.T) {
	s := NewStore(logger.Nop())

	// Tier-1 populates the slow fields
	s.Apply("ABCD", Patch{
		PrevClose: f(3.60),
		AvgVolume: i(4_000_000),
		FloatM:    f(50),
	}, midSession)

	// Tier-3 tick updates price/volume only
	snap := s.Apply("ABCD", Patch{
		Price:  f(4.00),
		Volume: i(600_000),
	}, midSession)

	// Tier-1 fields must survive the tick merge
	assert.Equal(t, 3.60, snap.PrevClose)
	assert.Equal(t, int64(4_000_000), snap.AvgVolume)
	assert.Equal(t, 50.0, snap.FloatM)

	// Derived fields recomputed
	assert.InDelta(t, 11.11, snap.GapPct, 0.01)
	assert.Greater(t, snap.RVOL, 0.0)
}

func TestApplyTracksDayHigh(t *testing.T) {
	s := NewStore(logger.Nop())

	s.Apply("HILO", Patch{PrevClose: f(2.00), DayHigh: f(2.50)}, midSession)

	snap := s.Apply("HILO", Patch{Price: f(2.60)}, midSession)
	assert.True(t, snap.IsNewHOD, "price above day high and prev close must flag new HOD")
	assert.Equal(t, 2.60, snap.DayHigh, "day high must ratchet up")

	// A lower DayHigh patch must not ratchet down
	snap = s.Apply("HILO", Patch{DayHigh: f(1.00)}, midSession)
	assert.Equal(t, 2.60, snap.DayHigh)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(logger.Nop())
	s.Apply("COPY", Patch{Price: f(5)}, midSession)

	snap, ok := s.Get("COPY")
	require.True(t, ok)

	snap.Price = 99
	again, _ := s.Get("COPY")
	assert.Equal(t, 5.0, again.Price, "mutating a returned snapshot must not affect the store")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots.json")

	s := NewStore(logger.Nop())
	s.Apply("AAA", Patch{Price: f(4.2), PrevClose: f(4.0)}, midSession)
	s.Apply("BBB", Patch{Price: f(1.1)}, midSession)

	require.NoError(t, s.Save(path))

	restored := NewStore(logger.Nop())
	require.NoError(t, restored.Load(path))

	assert.Equal(t, 2, restored.Len())
	snap, ok := restored.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, 4.2, snap.Price)
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	s := NewStore(logger.Nop())
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "nope.json")))
	assert.Equal(t, 0, s.Len())
}

func TestRVOL(t *testing.T) {
	// Full session elapsed: plain ratio
	endOfDay := time.Date(2026, 3, 2, 16, 30, 0, 0, session.Eastern)
	assert.Equal(t, 6.0, RVOL(6_000_000, 1_000_000, endOfDay))

	// Half the session elapsed: expected volume halves, RVOL doubles
	assert.Equal(t, 12.0, RVOL(6_000_000, 1_000_000, midSession))

	// No average volume
	assert.Equal(t, 0.0, RVOL(100, 0, endOfDay))

	// Premarket uses the floor, not a near-zero expectation
	premarket := time.Date(2026, 3, 2, 7, 0, 0, 0, session.Eastern)
	got := RVOL(50_000, 1_000_000, premarket)
	assert.Equal(t, 1.0, got)
}
