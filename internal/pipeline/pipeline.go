// Package pipeline implements the three-tier scanning flow: bulk
// prefilter, streaming validation and the realtime tick engine. Stages
// are independent loops joined by bounded latest-wins queues; a slow
// stage never blocks the one above it.
package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/logger"
)

const (
	universeFile  = "universe.json"
	snapshotsFile = "snapshots.json"
	enrichedFile  = "enriched_tickers.json"
)

// Manager owns the tier goroutines and the persistence of scanner state
type Manager struct {
	tier1 *Tier1
	tier2 *Tier2
	tier3 *Tier3

	universe  *universe.Store
	snapshots *snapshot.Store
	enriched  *enrich.Store
	dataDir   string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires the three stages together
func NewManager(t1 *Tier1, t2 *Tier2, t3 *Tier3, uni *universe.Store, snaps *snapshot.Store, enriched *enrich.Store, dataDir string, log *logger.Logger) *Manager {
	return &Manager{
		tier1:     t1,
		tier2:     t2,
		tier3:     t3,
		universe:  uni,
		snapshots: snaps,
		enriched:  enriched,
		dataDir:   dataDir,
		log:       log,
	}
}

// Start restores checkpoints and launches the tier loops
func (m *Manager) Start(ctx context.Context) {
	m.restore()

	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		m.tier1.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.tier2.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.tier3.Run(ctx)
	}()

	m.log.Info("pipeline started")
}

// Stop cancels the loops, waits for them and flushes all state
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.Checkpoint()
	m.log.Info("pipeline stopped")
}

// Checkpoint flushes every persisted store. Runs on a schedule and at
// shutdown; failures are logged and non-fatal.
func (m *Manager) Checkpoint() {
	if err := m.universe.Save(filepath.Join(m.dataDir, universeFile)); err != nil {
		m.log.WithError(err).Error("universe checkpoint failed")
	}
	if err := m.snapshots.Save(filepath.Join(m.dataDir, snapshotsFile)); err != nil {
		m.log.WithError(err).Error("snapshot checkpoint failed")
	}
	if err := m.enriched.Save(filepath.Join(m.dataDir, enrichedFile)); err != nil {
		m.log.WithError(err).Error("enrichment checkpoint failed")
	}
}

func (m *Manager) restore() {
	if err := m.universe.Load(filepath.Join(m.dataDir, universeFile)); err != nil {
		m.log.WithError(err).Warn("universe checkpoint unreadable")
	}
	if err := m.snapshots.Load(filepath.Join(m.dataDir, snapshotsFile)); err != nil {
		m.log.WithError(err).Warn("snapshot checkpoint unreadable")
	}
	if err := m.enriched.Load(filepath.Join(m.dataDir, enrichedFile)); err != nil {
		m.log.WithError(err).Warn("enrichment checkpoint unreadable")
	}
}

// Trigger forwards a news-driven symbol into the next Tier-1 sweep
func (m *Manager) Trigger(symbol string) {
	m.tier1.Trigger(symbol)
}

// DailyReset clears session-scoped state at the 04:00 ET boundary
func (m *Manager) DailyReset(now time.Time) {
	m.universe.ResetDayHighs()
	m.enriched.ResetDailyHits()
	m.log.WithField("at", now).Info("pipeline daily reset complete")
}
