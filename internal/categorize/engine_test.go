package categorize

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/pkg/config"
)

func defaultGates() config.GatesConfig {
	return config.GatesConfig{
		PreGapMaxPrice:  15.0,
		GapPct:          10.0,
		PreGapMinVolume: 500_000,
		FloatCapM:       100.0,
		BandMinPrice:    1.0,
		BandMaxPrice:    15.0,
		HODMinRVOL:      5.0,
		RunUpFloatCapM:  10.0,
		PennyRVOL:       7.0,
		RvslMaxPrice:    15.0,
		RvslMinRVOL:     8.0,
		RvslGapPct:      8.0,
	}
}

// etTime returns a wall-clock moment in US Eastern
func etTime(hour, min int) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	return time.Date(2026, 9, 1, hour, min, 0, 0, loc)
}

func TestEvaluatePreGapAndHOD(t *testing.T) {
	// Premarket gapper at a fresh high should land in both channels
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol:    "ABCD",
		Price:     4.00,
		PrevClose: 3.60, // gap +11.1%
		GapPct:    11.1,
		Volume:    600_000,
		RVOL:      6.0,
		FloatM:    50.0,
		IsNewHOD:  true,
	}

	channels := engine.Evaluate(snap, nil, etTime(7, 30))
	assert.Contains(t, channels, ChannelPreGap)
	assert.Contains(t, channels, ChannelHOD)
	assert.NotContains(t, channels, ChannelRunUp)
	assert.NotContains(t, channels, ChannelRvsl)
}

func TestEvaluateIdempotent(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol:    "ABCD",
		Price:     4.00,
		PrevClose: 3.60,
		GapPct:    11.1,
		Volume:    600_000,
		RVOL:      6.0,
		FloatM:    50.0,
		IsNewHOD:  true,
	}

	now := etTime(7, 30)
	first := engine.Evaluate(snap, nil, now)
	second := engine.Evaluate(snap, nil, now)
	sort.Strings(first)
	sort.Strings(second)
	assert.Equal(t, first, second)
}

func TestEvaluateGapBoundary(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol:   "EDGE",
		Price:    4.00,
		Volume:   600_000,
		RVOL:     6.0,
		FloatM:   50.0,
		IsNewHOD: true,
	}

	snap.GapPct = 10.0 // exactly at the floor fires
	assert.Contains(t, engine.Evaluate(snap, nil, etTime(7, 30)), ChannelPreGap)

	snap.GapPct = 9.99
	assert.NotContains(t, engine.Evaluate(snap, nil, etTime(7, 30)), ChannelPreGap)
}

func TestEvaluatePreGapRequiresPremarket(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol: "ABCD",
		Price:  4.00,
		GapPct: 12.0,
		Volume: 600_000,
		FloatM: 50.0,
	}

	assert.Contains(t, engine.Evaluate(snap, nil, etTime(7, 30)), ChannelPreGap)
	assert.NotContains(t, engine.Evaluate(snap, nil, etTime(10, 30)), ChannelPreGap)
}

func TestEvaluatePreGapNegativeGap(t *testing.T) {
	// gap magnitude counts, direction does not
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol: "DOWN",
		Price:  4.00,
		GapPct: -12.0,
		Volume: 600_000,
		FloatM: 50.0,
	}

	assert.Contains(t, engine.Evaluate(snap, nil, etTime(7, 30)), ChannelPreGap)
}

func TestEvaluateRunUpNeedsQuickMove(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol: "RUNR",
		Price:  3.50,
		GapPct: 12.0,
		RVOL:   6.0,
		FloatM: 8.0,
	}

	now := etTime(10, 0)
	assert.NotContains(t, engine.Evaluate(snap, nil, now), ChannelRunUp)

	qm := &snapshot.QuickMove{Pct: 6.2, Window: 5 * time.Minute, At: now}
	assert.Contains(t, engine.Evaluate(snap, qm, now), ChannelRunUp)
}

func TestEvaluateRunUpIgnoresStaleAnnotation(t *testing.T) {
	// The snapshot keeps the last quick-move for display, but only a move
	// detected on the current tick counts toward RunUp membership.
	engine := NewEngine(defaultGates(), nil)

	now := etTime(10, 0)
	snap := snapshot.Snapshot{
		Symbol:    "RUNR",
		Price:     3.50,
		GapPct:    12.0,
		RVOL:      6.0,
		FloatM:    8.0,
		QuickMove: &snapshot.QuickMove{Pct: 6.2, Window: 5 * time.Minute, At: now.Add(-30 * time.Minute)},
	}

	assert.NotContains(t, engine.Evaluate(snap, nil, now), ChannelRunUp)
	assert.NotContains(t, engine.Evaluate(snap, nil, now), ChannelPennyRun)
}

func TestEvaluateRunUpFloatCap(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	now := etTime(10, 0)
	snap := snapshot.Snapshot{
		Symbol: "FLTY",
		Price:  3.50,
		GapPct: 12.0,
		RVOL:   6.0,
		FloatM: 10.0, // at the cap, RunUp wants strictly below
	}
	qm := &snapshot.QuickMove{Pct: 6.0, Window: 5 * time.Minute, At: now}

	assert.NotContains(t, engine.Evaluate(snap, qm, now), ChannelRunUp)

	snap.FloatM = 9.9
	assert.Contains(t, engine.Evaluate(snap, qm, now), ChannelRunUp)
}

func TestEvaluatePennyChannels(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)
	now := etTime(10, 0)

	snap := snapshot.Snapshot{
		Symbol:   "PNNY",
		Price:    0.80,
		GapPct:   15.0,
		RVOL:     7.5,
		FloatM:   5.0,
		IsNewHOD: true,
	}
	qm := &snapshot.QuickMove{Pct: 11.0, Window: 10 * time.Minute, At: now}

	channels := engine.Evaluate(snap, qm, now)
	assert.Contains(t, channels, ChannelPennyHOD)
	assert.Contains(t, channels, ChannelPennyRun)
	// sub-dollar price is outside the regular band
	assert.NotContains(t, channels, ChannelHOD)
	assert.NotContains(t, channels, ChannelRunUp)

	// P-RunUp wants the stiffer RVOL floor
	snap.RVOL = 6.0
	channels = engine.Evaluate(snap, qm, now)
	assert.Contains(t, channels, ChannelPennyHOD)
	assert.NotContains(t, channels, ChannelPennyRun)
}

func TestEvaluateRvsl(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol: "RVSL",
		Price:  6.00,
		GapPct: -9.0,
		RVOL:   9.0,
	}

	assert.Contains(t, engine.Evaluate(snap, nil, etTime(11, 0)), ChannelRvsl)

	snap.RVOL = 7.9
	assert.NotContains(t, engine.Evaluate(snap, nil, etTime(11, 0)), ChannelRvsl)
}

func TestEvaluateBreakingNews(t *testing.T) {
	breaking := func(symbol string, _ time.Time) bool { return symbol == "NEWS" }
	engine := NewEngine(defaultGates(), breaking)

	hot := snapshot.Snapshot{Symbol: "NEWS", Price: 2.00}
	cold := snapshot.Snapshot{Symbol: "QUIET", Price: 2.00}

	now := etTime(11, 0)
	assert.Equal(t, []string{ChannelBreaking}, engine.Evaluate(hot, nil, now))
	assert.Empty(t, engine.Evaluate(cold, nil, now))
}

func TestEvaluateNoChannels(t *testing.T) {
	engine := NewEngine(defaultGates(), nil)

	snap := snapshot.Snapshot{
		Symbol:    "MEH",
		Price:     5.00,
		PrevClose: 4.95,
		GapPct:    1.0,
		Volume:    100_000,
		RVOL:      1.2,
		FloatM:    300.0,
	}

	assert.Empty(t, engine.Evaluate(snap, nil, etTime(10, 0)))
}

func TestMembershipEnterAndLeave(t *testing.T) {
	m := NewMembership()

	entered := m.Update("ABCD", []string{ChannelPreGap, ChannelHOD})
	sort.Strings(entered)
	assert.Equal(t, []string{ChannelHOD, ChannelPreGap}, entered)

	// same memberships again: nothing new
	assert.Empty(t, m.Update("ABCD", []string{ChannelPreGap, ChannelHOD}))

	// drop one, gain one
	entered = m.Update("ABCD", []string{ChannelHOD, ChannelRvsl})
	assert.Equal(t, []string{ChannelRvsl}, entered)
	assert.NotContains(t, m.Symbols(ChannelPreGap), "ABCD")

	// re-entry after leaving counts as new again
	entered = m.Update("ABCD", []string{ChannelHOD, ChannelRvsl, ChannelPreGap})
	assert.Equal(t, []string{ChannelPreGap}, entered)
}

func TestMembershipQueries(t *testing.T) {
	m := NewMembership()
	m.Update("AAA", []string{ChannelHOD})
	m.Update("BBB", []string{ChannelHOD, ChannelRvsl})

	hod := m.Symbols(ChannelHOD)
	sort.Strings(hod)
	assert.Equal(t, []string{"AAA", "BBB"}, hod)

	assert.Equal(t, []string{ChannelHOD, ChannelRvsl}, m.Channels("BBB"))

	active := m.ActiveSymbols()
	sort.Strings(active)
	assert.Equal(t, []string{"AAA", "BBB"}, active)

	snap := m.Snapshot()
	require.Contains(t, snap, ChannelHOD)
	assert.Len(t, snap[ChannelHOD], 2)
}

func TestMembershipRemoveAndClear(t *testing.T) {
	m := NewMembership()
	m.Update("AAA", []string{ChannelHOD, ChannelRvsl})
	m.Update("BBB", []string{ChannelHOD})

	m.Remove("AAA")
	assert.Empty(t, m.Channels("AAA"))
	assert.Equal(t, []string{"BBB"}, m.Symbols(ChannelHOD))

	m.Clear()
	assert.Empty(t, m.ActiveSymbols())
}
