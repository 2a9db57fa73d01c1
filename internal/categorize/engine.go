package categorize

import (
	"sync"
	"time"

	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/pkg/config"
)

// Channel names
const (
	ChannelPreGap   = "PreGap"
	ChannelHOD      = "HOD"
	ChannelRunUp    = "RunUp"
	ChannelPennyHOD = "P-HOD"
	ChannelPennyRun = "P-RunUp"
	ChannelRvsl     = "Rvsl"
	ChannelBreaking = "BKG-News"
)

// AllChannels lists every channel in display order
var AllChannels = []string{
	ChannelPreGap,
	ChannelHOD,
	ChannelRunUp,
	ChannelPennyHOD,
	ChannelPennyRun,
	ChannelRvsl,
	ChannelBreaking,
}

// BreakingFunc reports whether a symbol currently has a breaking vault
// entry inside the breaking window
type BreakingFunc func(symbol string, now time.Time) bool

// Engine maps a snapshot to its channel memberships. Evaluate is a pure
// function of its inputs; thresholds come from configuration.
type Engine struct {
	gates    config.GatesConfig
	breaking BreakingFunc
}

// NewEngine creates a categorization engine
func NewEngine(gates config.GatesConfig, breaking BreakingFunc) *Engine {
	if breaking == nil {
		breaking = func(string, time.Time) bool { return false }
	}
	return &Engine{gates: gates, breaking: breaking}
}

// Evaluate recomputes every channel gate for a snapshot from scratch.
// No hysteresis: a symbol's memberships are exactly the gates that hold
// right now. A symbol may land in several channels, or none. qm is the
// quick-move result for this tick; a move that fired on an earlier tick
// does not carry over.
func (e *Engine) Evaluate(snap snapshot.Snapshot, qm *snapshot.QuickMove, now time.Time) []string {
	g := e.gates
	var channels []string

	price := snap.Price
	gap := snap.GapPct
	absGap := gap
	if absGap < 0 {
		absGap = -absGap
	}
	quickMove := qm != nil

	// PreGap: premarket gappers with real volume and a sane float
	if session.IsPremarket(now) &&
		price <= g.PreGapMaxPrice &&
		absGap >= g.GapPct &&
		snap.Volume >= g.PreGapMinVolume &&
		snap.FloatM <= g.FloatCapM {
		channels = append(channels, ChannelPreGap)
	}

	// HOD: fresh intraday highs with heavy relative volume
	if price >= g.BandMinPrice && price <= g.BandMaxPrice &&
		snap.IsNewHOD &&
		snap.RVOL >= g.HODMinRVOL &&
		snap.FloatM <= g.FloatCapM &&
		gap >= g.GapPct {
		channels = append(channels, ChannelHOD)
	}

	// RunUp: low-float gappers that just printed a quick move
	if price >= g.BandMinPrice && price <= g.BandMaxPrice &&
		gap >= g.GapPct &&
		snap.RVOL >= g.HODMinRVOL &&
		snap.FloatM < g.RunUpFloatCapM &&
		quickMove {
		channels = append(channels, ChannelRunUp)
	}

	// P-HOD: sub-dollar variant of HOD
	if price <= g.BandMinPrice &&
		snap.IsNewHOD &&
		snap.RVOL >= g.HODMinRVOL &&
		snap.FloatM <= g.FloatCapM &&
		gap >= g.GapPct {
		channels = append(channels, ChannelPennyHOD)
	}

	// P-RunUp: sub-dollar variant of RunUp with a stiffer RVOL floor
	if price <= g.BandMinPrice &&
		gap >= g.GapPct &&
		snap.RVOL >= g.PennyRVOL &&
		snap.FloatM < g.RunUpFloatCapM &&
		quickMove {
		channels = append(channels, ChannelPennyRun)
	}

	// Rvsl: violent movers in either direction
	if price <= g.RvslMaxPrice &&
		snap.RVOL >= g.RvslMinRVOL &&
		absGap >= g.RvslGapPct {
		channels = append(channels, ChannelRvsl)
	}

	// BKG-News: breaking vault entry inside the breaking window,
	// regardless of technicals
	if e.breaking(snap.Symbol, now) {
		channels = append(channels, ChannelBreaking)
	}

	return channels
}

// Membership tracks the current channel sets and reports which channels a
// symbol newly entered on each evaluation. Channel-hit scoring and
// on-demand news fetches key off "new", not "still in".
type Membership struct {
	mu       sync.RWMutex
	channels map[string]map[string]bool // channel -> symbols
}

// NewMembership creates an empty membership registry
func NewMembership() *Membership {
	m := &Membership{channels: make(map[string]map[string]bool)}
	for _, ch := range AllChannels {
		m.channels[ch] = make(map[string]bool)
	}
	return m
}

// Update replaces the symbol's memberships with the given set and returns
// the channels it was not a member of before (the fresh entries).
func (m *Membership) Update(symbol string, current []string) (entered []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentSet := make(map[string]bool, len(current))
	for _, ch := range current {
		currentSet[ch] = true
	}

	for ch, symbols := range m.channels {
		was := symbols[symbol]
		is := currentSet[ch]
		switch {
		case is && !was:
			symbols[symbol] = true
			entered = append(entered, ch)
		case !is && was:
			delete(symbols, symbol)
		}
	}

	return entered
}

// Remove drops a symbol from every channel
func (m *Membership) Remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, symbols := range m.channels {
		delete(symbols, symbol)
	}
}

// Symbols returns the current members of a channel
func (m *Membership) Symbols(channel string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.channels[channel]
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	return out
}

// Channels returns the channels a symbol currently belongs to
func (m *Membership) Channels(symbol string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, ch := range AllChannels {
		if m.channels[ch][symbol] {
			out = append(out, ch)
		}
	}
	return out
}

// ActiveSymbols returns the union of all channel members. This set drives
// the news router's active watch list.
func (m *Membership) ActiveSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, symbols := range m.channels {
		for sym := range symbols {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

// Snapshot returns a copy of every channel's member set
func (m *Membership) Snapshot() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]string, len(m.channels))
	for ch, symbols := range m.channels {
		members := make([]string, 0, len(symbols))
		for sym := range symbols {
			members = append(members, sym)
		}
		out[ch] = members
	}
	return out
}

// Clear empties every channel. Called at the daily reset boundary.
func (m *Membership) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.channels {
		m.channels[ch] = make(map[string]bool)
	}
}
