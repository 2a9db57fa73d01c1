package universe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/signalscan/scanner/pkg/logger"
)

// Entry is the persisted per-symbol state carried across sessions
type Entry struct {
	Symbol    string    `json:"symbol"`
	PrevClose float64   `json:"prev_close"`
	DayHigh   float64   `json:"day_high"`
	AvgVolume int64     `json:"avg_volume"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds the full symbol universe and its per-symbol persisted state.
// Entries are mutated by Tier-1 after each sweep and only removed by a
// universe rebuild.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string // stable sweep order
	log     *logger.Logger
}

// NewStore creates an empty universe store
func NewStore(log *logger.Logger) *Store {
	return &Store{
		entries: make(map[string]*Entry),
		log:     log,
	}
}

// Symbols returns the sweep-ordered symbol list
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the universe size
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns a copy of a symbol's entry
func (s *Store) Get(symbol string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[symbol]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Update merges sweep results into a symbol's entry, creating it if the
// symbol is new. Zero values leave the stored field untouched.
func (s *Store) Update(symbol string, prevClose, dayHigh float64, avgVolume int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[symbol]
	if !ok {
		e = &Entry{Symbol: symbol}
		s.entries[symbol] = e
		s.order = append(s.order, symbol)
	}

	if prevClose > 0 {
		e.PrevClose = prevClose
	}
	if dayHigh > e.DayHigh {
		e.DayHigh = dayHigh
	}
	if avgVolume > 0 {
		e.AvgVolume = avgVolume
	}
	e.UpdatedAt = now
}

// Rebuild replaces the symbol list wholesale, keeping persisted state for
// symbols that survive. Only a rebuild ever deletes entries.
func (s *Store) Rebuild(symbols []string) (added, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		keep[sym] = true
		if _, ok := s.entries[sym]; !ok {
			s.entries[sym] = &Entry{Symbol: sym}
			added++
		}
	}

	for sym := range s.entries {
		if !keep[sym] {
			delete(s.entries, sym)
			removed++
		}
	}

	s.order = make([]string, 0, len(symbols))
	s.order = append(s.order, symbols...)
	sort.Strings(s.order)

	s.log.WithFields(map[string]interface{}{
		"total":   len(s.order),
		"added":   added,
		"removed": removed,
	}).Info("Universe rebuilt")

	return added, removed
}

// ResetDayHighs clears every rolling day high. Called at the daily reset.
func (s *Store) ResetDayHighs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.DayHigh = 0
	}
}

type checkpoint struct {
	Entries map[string]*Entry `json:"entries"`
	Order   []string          `json:"order"`
}

// Save writes the universe checkpoint
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(checkpoint{Entries: s.entries, Order: s.order}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores the universe from its checkpoint; a missing file means a
// fresh start, not an error.
func (s *Store) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var cp checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return err
	}
	if cp.Entries == nil {
		cp.Entries = make(map[string]*Entry)
	}

	s.mu.Lock()
	s.entries = cp.Entries
	s.order = cp.Order
	s.mu.Unlock()

	s.log.WithField("count", len(cp.Entries)).Info("Loaded universe checkpoint")
	return nil
}
