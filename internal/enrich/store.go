package enrich

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/pkg/logger"
)

// Promotion reasons for the session-wide gates. These are stronger than the
// per-channel gates and bias the next Tier-1 sweep toward the symbol.
const (
	ReasonPremarketSpike   = "premarket_spike"
	ReasonIntradayMomentum = "intraday_momentum"
	ReasonHODSprint        = "hod_sprint"
)

const (
	decayFactor = 0.9
	scoreFloor  = 5.0
)

// Record is one promoted symbol's cross-session state
type Record struct {
	Symbol      string    `json:"symbol"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Score       float64   `json:"score"`
	HitsToday   int       `json:"hits_today"`
	TotalHits   int       `json:"total_hits"`
	ChannelsHit []string  `json:"channels_hit"`
	LastReason  string    `json:"last_reason"`
}

// Store is the bounded, persisted promotion map.
// SSOT: cross-session symbol scoring lives only here.
type Store struct {
	mu       sync.Mutex
	records  map[string]*Record
	capacity int
	archive  *Repository
	log      *logger.Logger
}

// NewStore creates an enrichment store with the given capacity
func NewStore(capacity int, log *logger.Logger) *Store {
	return &Store{
		records:  make(map[string]*Record),
		capacity: capacity,
		log:      log,
	}
}

// SetArchive attaches the Postgres archive. Optional; nil-safe without it.
func (s *Store) SetArchive(r *Repository) {
	s.archive = r
}

// CheckGates evaluates the session-wide promotion gates against a snapshot
// and promotes on the first gate that holds. Returns the triggered reason,
// or "" when nothing fired.
func (s *Store) CheckGates(snap snapshot.Snapshot, now time.Time) string {
	reason := ""
	bonus := 0.0

	absGap := snap.GapPct
	if absGap < 0 {
		absGap = -absGap
	}

	switch {
	case session.IsPremarket(now) && snap.RVOL >= 8.0 && absGap >= 10.0 && snap.Volume >= 75_000:
		reason, bonus = ReasonPremarketSpike, 3
	case snap.RVOL >= 5.0 && absGap >= 8.0:
		reason, bonus = ReasonIntradayMomentum, 2
	case snap.IsNewHOD && snap.RVOL >= 6.0 && snap.FloatM <= 100 && snap.GapPct >= 5.0:
		reason, bonus = ReasonHODSprint, 3
	}

	if reason != "" {
		s.promote(snap.Symbol, reason, bonus, now)
	}
	return reason
}

// promote creates or bumps a record and culls if over capacity
func (s *Store) promote(symbol, reason string, bonus float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[symbol]
	if !ok {
		s.records[symbol] = &Record{
			Symbol:     symbol,
			FirstSeen:  now,
			LastSeen:   now,
			Score:      bonus,
			HitsToday:  1,
			TotalHits:  1,
			LastReason: reason,
		}
		s.log.WithFields(map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
			"bonus":  bonus,
		}).Info("Promoted new symbol")
	} else {
		rec.LastSeen = now
		rec.HitsToday++
		rec.TotalHits++
		rec.Score += bonus
		rec.LastReason = reason
	}

	s.cullLocked()

	rec, survived := s.records[symbol]
	if survived && s.archive.Enabled() {
		score := rec.Score
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.archive.SavePromotion(ctx, symbol, reason, score, now); err != nil {
				s.log.WithError(err).WithField("symbol", symbol).Warn("promotion archive failed")
			}
		}()
	}
}

// RecordChannelHit bumps a promoted symbol's score when it enters a
// channel. HOD hits count double. Symbols that never passed a promotion
// gate are ignored; channel membership alone does not create a record.
func (s *Store) RecordChannelHit(symbol, channel string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[symbol]
	if !ok {
		return
	}

	found := false
	for _, ch := range rec.ChannelsHit {
		if ch == channel {
			found = true
			break
		}
	}
	if !found {
		rec.ChannelsHit = append(rec.ChannelsHit, channel)
	}

	bonus := 1.0
	if channel == "HOD" {
		bonus = 2.0
	}

	rec.Score += bonus
	rec.HitsToday++
	rec.TotalHits++
	rec.LastSeen = now

	if s.archive.Enabled() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.archive.SaveChannelHit(ctx, symbol, channel, now); err != nil {
				s.log.WithError(err).WithField("symbol", symbol).Warn("channel hit archive failed")
			}
		}()
	}
}

// Decay multiplies every score by the decay factor and deletes records
// falling to the floor. Run on a fixed period by the scheduler.
func (s *Store) Decay() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sym, rec := range s.records {
		rec.Score *= decayFactor
		if rec.Score <= scoreFloor {
			delete(s.records, sym)
			removed++
		}
	}

	if removed > 0 {
		s.log.WithField("removed", removed).Info("Enrichment decay evicted records")
	}
	return removed
}

// cullLocked removes lowest-scoring records until back at capacity
func (s *Store) cullLocked() {
	if len(s.records) <= s.capacity {
		return
	}

	type scored struct {
		symbol string
		score  float64
	}
	all := make([]scored, 0, len(s.records))
	for sym, rec := range s.records {
		all = append(all, scored{sym, rec.Score})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score < all[j].score })

	excess := len(s.records) - s.capacity
	for i := 0; i < excess; i++ {
		delete(s.records, all[i].symbol)
	}

	s.log.WithField("culled", excess).Info("Enrichment store over capacity")
}

// Cull enforces the capacity bound
func (s *Store) Cull() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullLocked()
}

// WatchSymbols returns the promoted set for Tier-1 to prioritize,
// highest score first.
func (s *Store) WatchSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		symbol string
		score  float64
	}
	all := make([]scored, 0, len(s.records))
	for sym, rec := range s.records {
		all = append(all, scored{sym, rec.Score})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	out := make([]string, len(all))
	for i, sc := range all {
		out[i] = sc.symbol
	}
	return out
}

// Get returns a copy of a record
func (s *Store) Get(symbol string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[symbol]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the record count
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ResetDailyHits zeroes the hits-today counters at the daily reset boundary
func (s *Store) ResetDailyHits() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		rec.HitsToday = 0
	}
}

// Save writes the promotion checkpoint
func (s *Store) Save(path string) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores the promotion map; missing file means fresh start
func (s *Store) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := make(map[string]*Record)
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return err
	}

	s.mu.Lock()
	s.records = loaded
	s.mu.Unlock()

	s.log.WithField("count", len(loaded)).Info("Loaded enrichment checkpoint")
	return nil
}
