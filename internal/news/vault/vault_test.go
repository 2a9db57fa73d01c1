package vault

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/logger"
)

func testVault() *Vault {
	return New(72*time.Hour, logger.Nop())
}

func article(url, symbol, title, source string, published time.Time) contracts.Article {
	return contracts.Article{
		Title:     title,
		URL:       url,
		Symbols:   []string{symbol},
		Published: published,
		Source:    source,
	}
}

func TestInsertDedup(t *testing.T) {
	v := testVault()
	now := time.Now()

	a := article("https://example.com/a", "ABCD", "Company wins contract", "newsapi", now.Add(-time.Hour))

	assert.True(t, v.Insert(a, false, now))
	assert.False(t, v.Insert(a, false, now))
	assert.Equal(t, 1, v.Size())
}

func TestInsertSourceUpgrade(t *testing.T) {
	// same URL from a higher-priority vendor: size unchanged, source
	// updated, no new-insert signal
	v := testVault()
	now := time.Now()
	pub := now.Add(-time.Hour)

	low := article("https://example.com/a", "ABCD", "Deal announced", "alphavantage", pub)
	high := article("https://example.com/a", "ABCD", "Deal announced", "polygon", pub)

	assert.True(t, v.Insert(low, false, now))
	assert.False(t, v.Insert(high, false, now))
	assert.Equal(t, 1, v.Size())

	source, ok := v.Source(low.DedupKey())
	require.True(t, ok)
	assert.Equal(t, "polygon", source)
}

func TestInsertNoSourceDowngrade(t *testing.T) {
	v := testVault()
	now := time.Now()
	pub := now.Add(-time.Hour)

	high := article("https://example.com/a", "ABCD", "Deal announced", "polygon", pub)
	low := article("https://example.com/a", "ABCD", "Deal announced", "alphavantage", pub)

	v.Insert(high, false, now)
	v.Insert(low, false, now)

	source, _ := v.Source(high.DedupKey())
	assert.Equal(t, "polygon", source)
}

func TestInsertFallbackKey(t *testing.T) {
	// no URL: key is symbol plus title prefix, so the same headline for
	// the same symbol dedups across vendors
	v := testVault()
	now := time.Now()

	a := article("", "ABCD", "Company wins contract", "finnhub", now.Add(-time.Hour))
	b := article("", "ABCD", "Company wins contract", "fmp", now.Add(-time.Hour))
	c := article("", "EFGH", "Company wins contract", "fmp", now.Add(-time.Hour))

	assert.True(t, v.Insert(a, false, now))
	assert.False(t, v.Insert(b, false, now))
	assert.True(t, v.Insert(c, false, now))
	assert.Equal(t, 2, v.Size())
}

func TestHasBreaking(t *testing.T) {
	v := testVault()
	now := time.Now()

	fresh := article("https://example.com/fresh", "HOTT", "Trading halted", "alpaca", now.Add(-30*time.Minute))
	stale := article("https://example.com/stale", "COLD", "Trading halted", "alpaca", now.Add(-3*time.Hour))
	quiet := article("https://example.com/quiet", "MEHH", "Quarterly update", "alpaca", now.Add(-30*time.Minute))

	v.Insert(fresh, true, now)
	v.Insert(stale, true, now)
	v.Insert(quiet, false, now)

	window := 2 * time.Hour
	assert.True(t, v.HasBreaking("HOTT", window, now))
	assert.False(t, v.HasBreaking("COLD", window, now), "breaking flag expires with article age")
	assert.False(t, v.HasBreaking("MEHH", window, now))
	assert.False(t, v.HasBreaking("NONE", window, now))
}

func TestSweep(t *testing.T) {
	v := testVault()
	now := time.Now()

	old := article("https://example.com/old", "ABCD", "Old story", "polygon", now.Add(-80*time.Hour))
	recent := article("https://example.com/new", "ABCD", "New story", "polygon", now.Add(-time.Hour))

	v.Insert(old, false, now)
	v.Insert(recent, false, now)

	assert.Equal(t, 1, v.Sweep(now))
	assert.Equal(t, 1, v.Size())

	// swept keys may be re-inserted
	assert.True(t, v.Insert(old, false, now))
}

func TestEntriesForOrdering(t *testing.T) {
	v := testVault()
	now := time.Now()

	v.Insert(article("https://example.com/1", "ABCD", "First", "polygon", now.Add(-3*time.Hour)), false, now)
	v.Insert(article("https://example.com/2", "ABCD", "Second", "polygon", now.Add(-time.Hour)), false, now)
	v.Insert(article("https://example.com/3", "EFGH", "Other", "polygon", now.Add(-time.Hour)), false, now)

	entries := v.EntriesFor("ABCD")
	require.Len(t, entries, 2)
	assert.Equal(t, "Second", entries[0].Title)
	assert.Equal(t, "First", entries[1].Title)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	now := time.Now()

	v := testVault()
	v.Insert(article("https://example.com/a", "ABCD", "Story", "polygon", now.Add(-time.Hour)), true, now)
	require.NoError(t, v.Save(path))

	restored := testVault()
	require.NoError(t, restored.Load(path))
	assert.Equal(t, 1, restored.Size())
	assert.True(t, restored.HasBreaking("ABCD", 2*time.Hour, now))

	// duplicate detection survives the round trip
	assert.False(t, restored.Insert(article("https://example.com/a", "ABCD", "Story", "polygon", now.Add(-time.Hour)), true, now))
}

func TestLoadMissingFile(t *testing.T) {
	v := testVault()
	assert.NoError(t, v.Load(filepath.Join(t.TempDir(), "nope.json")))
	assert.Equal(t, 0, v.Size())
}
