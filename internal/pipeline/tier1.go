package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/external/yahoo"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/telemetry"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

// QuoteSource is the bulk quote dependency, satisfied by the Yahoo client
type QuoteSource interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]yahoo.Quote, error)
}

// FloatSource scrapes a float estimate for symbols whose bulk quote
// carries no shares-outstanding figure, satisfied by the Yahoo client
type FloatSource interface {
	FetchFloatMillions(ctx context.Context, symbol string) (float64, error)
}

const candidatesFile = "prefiltered_candidates.json"

// Tier1 is the hourly bulk prefilter. It sweeps the scan list in chunks,
// applies the price band and average-volume floor, seeds the snapshot
// store with per-symbol metadata and queues the shortlist to Tier-2.
type Tier1 struct {
	cfg       config.ScannerConfig
	source    QuoteSource
	floats    FloatSource
	universe  *universe.Store
	enriched  *enrich.Store
	snapshots *snapshot.Store
	metrics   *telemetry.Metrics
	log       *logger.Logger
	dataDir   string

	out chan []contracts.Candidate

	mu             sync.Mutex
	rotationOffset int
	newsTriggers   []string
	triggerSeen    map[string]bool
}

// NewTier1 creates the prefilter stage
func NewTier1(cfg config.ScannerConfig, dataDir string, source QuoteSource, uni *universe.Store, enriched *enrich.Store, snaps *snapshot.Store, log *logger.Logger) *Tier1 {
	return &Tier1{
		cfg:         cfg,
		source:      source,
		universe:    uni,
		enriched:    enriched,
		snapshots:   snaps,
		log:         log,
		dataDir:     dataDir,
		out:         make(chan []contracts.Candidate, 1),
		triggerSeen: make(map[string]bool),
	}
}

// SetMetrics attaches the instrument set. Optional; nil-safe without it.
func (t *Tier1) SetMetrics(m *telemetry.Metrics) {
	t.metrics = m
}

// SetFloatSource attaches the float-scrape fallback for symbols the bulk
// quote API reports without shares outstanding. Optional; nil-safe
// without it, those symbols just keep a zero float.
func (t *Tier1) SetFloatSource(f FloatSource) {
	t.floats = f
}

// Shortlists returns the output queue consumed by Tier-2
func (t *Tier1) Shortlists() <-chan []contracts.Candidate {
	return t.out
}

// Trigger queues a news-driven symbol for priority inclusion in the next
// sweep. Duplicates collapse until the queue drains.
func (t *Tier1) Trigger(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.triggerSeen[symbol] {
		return
	}
	t.triggerSeen[symbol] = true
	t.newsTriggers = append(t.newsTriggers, symbol)
}

// Run sweeps on the configured interval until cancelled. The first sweep
// starts immediately.
func (t *Tier1) Run(ctx context.Context) {
	t.loadCheckpoint()

	ticker := time.NewTicker(t.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		t.RunSweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunSweep performs one full prefilter pass
func (t *Tier1) RunSweep(ctx context.Context) {
	start := time.Now()
	scanList := t.buildScanList()
	if len(scanList) == 0 {
		t.log.Warn("tier1 sweep skipped, empty scan list")
		return
	}

	var candidates []contracts.Candidate
	for offset := 0; offset < len(scanList); offset += t.cfg.ChunkSize {
		if ctx.Err() != nil {
			return
		}

		end := offset + t.cfg.ChunkSize
		if end > len(scanList) {
			end = len(scanList)
		}

		quotes, err := t.source.FetchQuotes(ctx, scanList[offset:end])
		if err != nil {
			t.log.WithError(err).WithField("offset", offset).Error("tier1 chunk failed")
			continue
		}

		for _, q := range quotes {
			if c, ok := t.filter(ctx, q); ok {
				candidates = append(candidates, c)
			}
		}
	}

	t.log.WithFields(map[string]interface{}{
		"scanned":    len(scanList),
		"candidates": len(candidates),
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}).Info("tier1 sweep complete")

	if t.metrics != nil {
		t.metrics.ScanCycles.Inc()
		t.metrics.CandidatesFound.Set(float64(len(candidates)))
	}

	t.saveCheckpoint(candidates)
	if len(candidates) > 0 {
		t.publish(candidates)
	}
}

// filter applies the prefilter gates to one quote and records its
// metadata as a side effect
func (t *Tier1) filter(ctx context.Context, q yahoo.Quote) (contracts.Candidate, bool) {
	// every quote refreshes universe state, even outside the band
	t.universe.Update(q.Symbol, q.PrevClose, q.DayHigh, q.AvgVolume, time.Now())

	if q.Price < t.cfg.MinPrice || q.Price > t.cfg.MaxPrice {
		return contracts.Candidate{}, false
	}
	if q.Volume <= 0 {
		return contracts.Candidate{}, false
	}
	if q.AvgVolume < t.cfg.MinAvgVolume {
		return contracts.Candidate{}, false
	}

	t.seedSnapshot(ctx, q)

	return contracts.Candidate{
		Symbol:    q.Symbol,
		Price:     q.Price,
		Volume:    q.Volume,
		AvgVolume: q.AvgVolume,
	}, true
}

// seedSnapshot writes the slow-moving fields the realtime tiers never
// carry: previous close, average volume, float, the 52-week-high flag
func (t *Tier1) seedSnapshot(ctx context.Context, q yahoo.Quote) {
	patch := snapshot.Patch{
		Price:     &q.Price,
		Volume:    &q.Volume,
		PrevClose: &q.PrevClose,
		AvgVolume: &q.AvgVolume,
	}
	if q.SharesOutstanding > 0 {
		floatM := float64(q.SharesOutstanding) / 1e6
		patch.FloatM = &floatM
	} else if floatM, ok := t.scrapeFloat(ctx, q.Symbol); ok {
		patch.FloatM = &floatM
	}
	if q.Week52High > 0 {
		is52 := q.Price >= q.Week52High
		patch.Is52wkHigh = &is52
	}
	t.snapshots.Apply(q.Symbol, patch, time.Now())
}

// scrapeFloat falls back to the key-statistics page when the bulk quote
// omits shares outstanding. A zero float would trivially pass every
// float-cap gate, so the scrape runs before the symbol first reaches the
// engine; symbols that already carry a float are left alone.
func (t *Tier1) scrapeFloat(ctx context.Context, symbol string) (float64, bool) {
	if t.floats == nil {
		return 0, false
	}
	if snap, ok := t.snapshots.Get(symbol); ok && snap.FloatM > 0 {
		return 0, false
	}

	floatM, err := t.floats.FetchFloatMillions(ctx, symbol)
	if err != nil {
		t.log.WithError(err).WithField("symbol", symbol).Debug("float scrape failed")
		return 0, false
	}
	return floatM, floatM > 0
}

// buildScanList assembles the sweep in priority order: enriched symbols,
// then the universe rotation slice, then news-triggered symbols. The
// rotation offset advances each sweep so the whole universe is covered
// over successive cycles.
func (t *Tier1) buildScanList() []string {
	all := t.universe.Symbols()

	t.mu.Lock()
	triggers := t.newsTriggers
	t.newsTriggers = nil
	t.triggerSeen = make(map[string]bool)

	var rotation []string
	if len(all) > 0 {
		size := t.cfg.UniverseCap
		if size > len(all) {
			size = len(all)
		}
		rotation = make([]string, 0, size)
		for i := 0; i < size; i++ {
			rotation = append(rotation, all[(t.rotationOffset+i)%len(all)])
		}
		t.rotationOffset = (t.rotationOffset + size) % len(all)
	}
	t.mu.Unlock()

	seen := make(map[string]bool)
	scanList := make([]string, 0, len(rotation)+len(triggers))
	appendUnique := func(symbols []string) {
		for _, s := range symbols {
			if !seen[s] {
				seen[s] = true
				scanList = append(scanList, s)
			}
		}
	}

	appendUnique(t.enriched.WatchSymbols())
	appendUnique(rotation)
	appendUnique(triggers)

	if len(scanList) > t.cfg.UniverseCap {
		scanList = scanList[:t.cfg.UniverseCap]
	}
	return scanList
}

// publish replaces any unconsumed shortlist, latest wins
func (t *Tier1) publish(candidates []contracts.Candidate) {
	for {
		select {
		case t.out <- candidates:
			return
		default:
			select {
			case <-t.out:
			default:
			}
		}
	}
}

func (t *Tier1) checkpointPath() string {
	return filepath.Join(t.dataDir, candidatesFile)
}

func (t *Tier1) saveCheckpoint(candidates []contracts.Candidate) {
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		t.log.WithError(err).Error("tier1 checkpoint marshal failed")
		return
	}
	if err := os.MkdirAll(t.dataDir, 0o755); err != nil {
		t.log.WithError(err).Error("tier1 checkpoint dir failed")
		return
	}
	if err := os.WriteFile(t.checkpointPath(), data, 0o644); err != nil {
		t.log.WithError(err).Error("tier1 checkpoint write failed")
	}
}

// loadCheckpoint re-queues the persisted shortlist so Tier-2 has work
// before the first sweep completes
func (t *Tier1) loadCheckpoint() {
	data, err := os.ReadFile(t.checkpointPath())
	if err != nil {
		return
	}

	var candidates []contracts.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		t.log.WithError(err).Warn("tier1 checkpoint unreadable")
		return
	}
	if len(candidates) > 0 {
		t.log.WithField("candidates", len(candidates)).Info("tier1 checkpoint restored")
		t.publish(candidates)
	}
}
