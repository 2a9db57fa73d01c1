package vault

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/logger"
)

// sourcePriority ranks vendors for the upgrade-on-duplicate rule. Lower is
// better; unknown vendors rank last and never displace a known one.
var sourcePriority = map[string]int{
	"alpaca":       0,
	"polygon":      1,
	"marketaux":    2,
	"newsapi":      3,
	"alphavantage": 4,
	"fmp":          5,
	"finnhub":      6,
}

const unknownPriority = 99

// Entry is one deduplicated vault record
type Entry struct {
	Symbol    string    `json:"symbol"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
	Breaking  bool      `json:"breaking,omitempty"`
	Added     time.Time `json:"added"`
}

// Vault is the persisted deduplicated article store.
// SSOT: article dedup state lives only here.
type Vault struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	expiration time.Duration
	archive    *Repository
	log        *logger.Logger
}

// New creates an empty vault with the given entry lifetime
func New(expiration time.Duration, log *logger.Logger) *Vault {
	return &Vault{
		entries:    make(map[string]*Entry),
		expiration: expiration,
		log:        log,
	}
}

// SetArchive attaches the Postgres archive. Optional; nil-safe without it.
func (v *Vault) SetArchive(r *Repository) {
	v.archive = r
}

// Insert adds an article under its dedup key. Returns true when the key is
// new. On a duplicate only the source may change, and only upward in
// priority; callers must not re-emit events for duplicates.
func (v *Vault) Insert(article contracts.Article, breaking bool, now time.Time) bool {
	key := article.DedupKey()

	v.mu.Lock()

	if existing, ok := v.entries[key]; ok {
		if priorityOf(article.Source) < priorityOf(existing.Source) {
			v.log.WithField("key", key).
				WithField("source", article.Source).
				Debug("vault source upgraded")
			existing.Source = article.Source
			v.archiveEntry(key, *existing)
		}
		v.mu.Unlock()
		return false
	}

	symbol := ""
	if len(article.Symbols) > 0 {
		symbol = article.Symbols[0]
	}

	entry := &Entry{
		Symbol:    symbol,
		Title:     article.Title,
		URL:       article.URL,
		Published: article.Published,
		Source:    article.Source,
		Breaking:  breaking,
		Added:     now,
	}
	v.entries[key] = entry
	v.archiveEntry(key, *entry)
	v.mu.Unlock()
	return true
}

// archiveEntry writes to Postgres off the hot path. Called with v.mu held,
// so it copies the entry and releases nothing.
func (v *Vault) archiveEntry(key string, e Entry) {
	if !v.archive.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.archive.SaveEntry(ctx, key, e); err != nil {
			v.log.WithError(err).WithField("key", key).Warn("vault archive failed")
		}
	}()
}

func priorityOf(source string) int {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return unknownPriority
}

// HasBreaking reports whether the symbol has a breaking entry whose article
// is still inside the given window. Drives the breaking-news channel gate.
func (v *Vault) HasBreaking(symbol string, window time.Duration, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, e := range v.entries {
		if e.Breaking && e.Symbol == symbol && now.Sub(e.Published) <= window {
			return true
		}
	}
	return false
}

// EntriesFor returns the symbol's entries, newest published first
func (v *Vault) EntriesFor(symbol string) []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []Entry
	for _, e := range v.entries {
		if e.Symbol == symbol {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	return out
}

// Source returns the current source recorded for a dedup key
func (v *Vault) Source(key string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[key]
	if !ok {
		return "", false
	}
	return e.Source, true
}

// Size returns the entry count
func (v *Vault) Size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Sweep purges entries older than the vault expiration and returns how
// many were removed. Age is measured from the publish timestamp.
func (v *Vault) Sweep(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	for key, e := range v.entries {
		if now.Sub(e.Published) > v.expiration {
			delete(v.entries, key)
			removed++
		}
	}

	if removed > 0 {
		v.log.WithField("removed", removed).
			WithField("remaining", len(v.entries)).
			Info("vault sweep complete")
	}
	return removed
}

type checkpoint struct {
	Entries map[string]*Entry `json:"entries"`
}

// Save writes the vault to a JSON checkpoint
func (v *Vault) Save(path string) error {
	v.mu.Lock()
	data, err := json.MarshalIndent(checkpoint{Entries: v.entries}, "", "  ")
	v.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores the vault from a JSON checkpoint. A missing file is not an
// error; the vault starts empty.
func (v *Vault) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if cp.Entries != nil {
		v.entries = cp.Entries
	}
	return nil
}
