package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/signalscan/scanner/pkg/logger"
)

// Snapshot is the rolling per-symbol market state shared by all tiers.
// Tier-1 populates the slow fields (previous close, average volume, float),
// Tier-2 contributes bid/ask, Tier-3 streams price/volume. Consumers must
// tolerate partially populated records.
type Snapshot struct {
	Symbol string `json:"symbol"`

	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	PrevClose float64 `json:"prev_close"`
	AvgVolume int64   `json:"avg_volume"`
	DayHigh   float64 `json:"day_high"`

	GapPct     float64 `json:"gap_pct"`
	RVOL       float64 `json:"rvol"`
	FloatM     float64 `json:"float_m"` // float shares, millions
	IsNewHOD   bool    `json:"is_new_hod"`
	Is52wkHigh bool    `json:"is_52wk_high"`

	QuickMove  *QuickMove `json:"quick_move,omitempty"`
	LastUpdate time.Time  `json:"last_update"`
}

// QuickMove annotates the most recent short-window move that fired
type QuickMove struct {
	Pct    float64       `json:"pct"`
	Window time.Duration `json:"window"`
	At     time.Time     `json:"at"`
}

// Patch is a field-level update. Nil fields are left untouched; the store
// never replaces a whole record, so a Tier-3 tick cannot clobber fields only
// Tier-1 populates.
type Patch struct {
	Price     *float64
	Volume    *int64
	Bid       *float64
	Ask       *float64
	PrevClose *float64
	AvgVolume *int64
	DayHigh   *float64

	FloatM     *float64
	IsNewHOD   *bool
	Is52wkHigh *bool
	QuickMove  *QuickMove
}

// Store holds the shared snapshot map.
// SSOT: the only mutable state accessed by more than one tier.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Snapshot
	log  *logger.Logger
}

// NewStore creates an empty snapshot store
func NewStore(log *logger.Logger) *Store {
	return &Store{
		data: make(map[string]*Snapshot),
		log:  log,
	}
}

// Apply merges a patch into the symbol's snapshot, creating the record on
// first sight, and recomputes the derived gap/RVOL fields.
func (s *Store) Apply(symbol string, p Patch, now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.data[symbol]
	if !ok {
		snap = &Snapshot{Symbol: symbol}
		s.data[symbol] = snap
	}

	if p.Price != nil {
		snap.Price = *p.Price
		if snap.DayHigh > 0 && snap.Price >= snap.DayHigh && snap.Price > snap.PrevClose {
			snap.IsNewHOD = true
		}
		if snap.Price > snap.DayHigh {
			snap.DayHigh = snap.Price
		}
	}
	if p.Volume != nil {
		snap.Volume = *p.Volume
	}
	if p.Bid != nil {
		snap.Bid = *p.Bid
	}
	if p.Ask != nil {
		snap.Ask = *p.Ask
	}
	if p.PrevClose != nil {
		snap.PrevClose = *p.PrevClose
	}
	if p.AvgVolume != nil {
		snap.AvgVolume = *p.AvgVolume
	}
	if p.DayHigh != nil && *p.DayHigh > snap.DayHigh {
		snap.DayHigh = *p.DayHigh
	}
	if p.FloatM != nil {
		snap.FloatM = *p.FloatM
	}
	if p.IsNewHOD != nil {
		snap.IsNewHOD = *p.IsNewHOD
	}
	if p.Is52wkHigh != nil {
		snap.Is52wkHigh = *p.Is52wkHigh
	}
	if p.QuickMove != nil {
		snap.QuickMove = p.QuickMove
	}

	if snap.PrevClose > 0 {
		snap.GapPct = (snap.Price - snap.PrevClose) / snap.PrevClose * 100
	}
	snap.RVOL = RVOL(snap.Volume, snap.AvgVolume, now)

	snap.LastUpdate = now
	return *snap
}

// Get returns a copy of the symbol's snapshot
func (s *Store) Get(symbol string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[symbol]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// All returns a copy of every snapshot
func (s *Store) All() map[string]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Snapshot, len(s.data))
	for sym, snap := range s.data {
		out[sym] = *snap
	}
	return out
}

// Len returns the number of tracked symbols
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Save writes the snapshot map checkpoint. Write failures are logged, not
// fatal; in-memory state stays authoritative until the next flush.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores the snapshot map from the checkpoint. A missing file is not
// an error: the store just starts empty.
func (s *Store) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := make(map[string]*Snapshot)
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = loaded
	s.mu.Unlock()

	s.log.WithField("count", len(loaded)).Info("Loaded snapshot checkpoint")
	return nil
}
