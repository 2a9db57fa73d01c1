package pipeline

import (
	"context"

	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/events"
	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/telemetry"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

// TickStreamer is the Tier-3 feed dependency, satisfied by the Tradier
// tick stream
type TickStreamer interface {
	OnTick(fn func(contracts.Tick))
	Subscribe(ctx context.Context, symbols []string) error
	Close()
}

// NewsFetchFunc requests the one-time on-demand news lookup for a symbol
// that just entered a channel
type NewsFetchFunc func(ctx context.Context, symbol string)

// Tier3 is the realtime engine. Every tick merges into the snapshot
// store, feeds the rolling window, runs quick-move detection and drives
// the categorization engine synchronously.
type Tier3 struct {
	cfg        config.ScannerConfig
	stream     TickStreamer
	in         <-chan []contracts.ValidatedCandidate
	snapshots  *snapshot.Store
	windows    *snapshot.WindowSet
	engine     *categorize.Engine
	membership *categorize.Membership
	enriched   *enrich.Store
	bus        *events.Bus
	newsFetch  NewsFetchFunc
	clock      session.Clock
	metrics    *telemetry.Metrics
	log        *logger.Logger

	ctx context.Context
}

// NewTier3 creates the realtime stage
func NewTier3(
	cfg config.ScannerConfig,
	stream TickStreamer,
	in <-chan []contracts.ValidatedCandidate,
	snaps *snapshot.Store,
	windows *snapshot.WindowSet,
	engine *categorize.Engine,
	membership *categorize.Membership,
	enriched *enrich.Store,
	bus *events.Bus,
	newsFetch NewsFetchFunc,
	clock session.Clock,
	log *logger.Logger,
) *Tier3 {
	if newsFetch == nil {
		newsFetch = func(context.Context, string) {}
	}
	t := &Tier3{
		cfg:        cfg,
		stream:     stream,
		in:         in,
		snapshots:  snaps,
		windows:    windows,
		engine:     engine,
		membership: membership,
		enriched:   enriched,
		bus:        bus,
		newsFetch:  newsFetch,
		clock:      clock,
		log:        log,
	}
	stream.OnTick(t.HandleTick)
	return t
}

// SetMetrics attaches the instrument set. Optional; nil-safe without it.
func (t *Tier3) SetMetrics(m *telemetry.Metrics) {
	t.metrics = m
}

// Run consumes validated lists until cancelled
func (t *Tier3) Run(ctx context.Context) {
	t.ctx = ctx
	defer t.stream.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case validated := <-t.in:
			t.resubscribe(ctx, validated)
		}
	}
}

// resubscribe merges the validated quotes into the snapshot store and
// points the tick feed at the new symbol set
func (t *Tier3) resubscribe(ctx context.Context, validated []contracts.ValidatedCandidate) {
	if len(validated) > t.cfg.Tier3Cap {
		validated = validated[:t.cfg.Tier3Cap]
	}

	symbols := make([]string, len(validated))
	now := t.clock.Now()
	for i, vc := range validated {
		symbols[i] = vc.Symbol

		patch := snapshot.Patch{
			Price:     &vc.Candidate.Price,
			Volume:    &vc.Candidate.Volume,
			AvgVolume: &vc.Candidate.AvgVolume,
		}
		if vc.Validated {
			patch.Price = &vc.StreamPrice
			patch.Bid = &vc.BidPrice
			patch.Ask = &vc.AskPrice
		}
		t.snapshots.Apply(vc.Symbol, patch, now)
	}

	if err := t.stream.Subscribe(ctx, symbols); err != nil {
		t.log.WithError(err).Error("tier3 subscribe failed")
		return
	}

	t.log.WithField("symbols", len(symbols)).Info("tier3 engine tracking new list")
}

// HandleTick is the synchronous per-tick path
func (t *Tier3) HandleTick(tick contracts.Tick) {
	if tick.Last <= 0 {
		return
	}
	now := t.clock.Now()

	patch := snapshot.Patch{Price: &tick.Last}
	if tick.Bid > 0 {
		patch.Bid = &tick.Bid
	}
	if tick.Ask > 0 {
		patch.Ask = &tick.Ask
	}
	if tick.Volume > 0 {
		patch.Volume = &tick.Volume
	}

	window := t.windows.Get(tick.Symbol)
	window.Append(now, tick.Last)
	qm := window.DetectQuickMove(tick.Last, now)
	if qm != nil {
		patch.QuickMove = qm
		if t.metrics != nil {
			t.metrics.QuickMoves.Inc()
		}
	}
	if t.metrics != nil {
		t.metrics.TicksProcessed.Inc()
	}

	snap := t.snapshots.Apply(tick.Symbol, patch, now)

	if reason := t.enriched.CheckGates(snap, now); reason != "" {
		t.log.WithField("symbol", tick.Symbol).
			WithField("reason", reason).
			Info("symbol promoted")
	}

	channels := t.engine.Evaluate(snap, qm, now)
	entered := t.membership.Update(tick.Symbol, channels)

	for _, ch := range entered {
		t.enriched.RecordChannelHit(tick.Symbol, ch, now)
	}
	if len(entered) > 0 && t.ctx != nil {
		t.newsFetch(t.ctx, tick.Symbol)
	}

	t.bus.PublishSnapshot(events.SnapshotEvent{
		Symbol:   tick.Symbol,
		Channels: channels,
		Price:    snap.Price,
		GapPct:   snap.GapPct,
		RVOL:     snap.RVOL,
		Volume:   snap.Volume,
		At:       now,
	})
}
