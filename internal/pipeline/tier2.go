package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/telemetry"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

// QuoteStreamer is the Tier-2 feed dependency, satisfied by the Alpaca
// quote stream
type QuoteStreamer interface {
	OnQuote(fn func(contracts.Quote))
	OnTrade(fn func(contracts.Tick))
	Subscribe(ctx context.Context, symbols []string) error
	Close()
}

const validatedFile = "validated_candidates.json"

// Tier2 validates the Tier-1 shortlist against the streaming feed. Each
// new shortlist resubscribes the stream (unless the symbol set is
// unchanged), collects quotes for the validation window and merges them
// into the candidates before handing off to Tier-3.
type Tier2 struct {
	cfg     config.ScannerConfig
	stream  QuoteStreamer
	in      <-chan []contracts.Candidate
	metrics *telemetry.Metrics
	log     *logger.Logger
	dataDir string

	out chan []contracts.ValidatedCandidate

	mu        sync.Mutex
	current   []string
	collected map[string]contracts.Quote
}

// NewTier2 creates the validation stage
func NewTier2(cfg config.ScannerConfig, dataDir string, stream QuoteStreamer, in <-chan []contracts.Candidate, log *logger.Logger) *Tier2 {
	t := &Tier2{
		cfg:       cfg,
		stream:    stream,
		in:        in,
		log:       log,
		dataDir:   dataDir,
		out:       make(chan []contracts.ValidatedCandidate, 1),
		collected: make(map[string]contracts.Quote),
	}
	stream.OnQuote(t.record)
	stream.OnTrade(t.recordTrade)
	return t
}

// SetMetrics attaches the instrument set. Optional; nil-safe without it.
func (t *Tier2) SetMetrics(m *telemetry.Metrics) {
	t.metrics = m
}

// Validated returns the output queue consumed by Tier-3
func (t *Tier2) Validated() <-chan []contracts.ValidatedCandidate {
	return t.out
}

// Run consumes shortlists until cancelled
func (t *Tier2) Run(ctx context.Context) {
	t.loadCheckpoint()

	defer t.stream.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case shortlist := <-t.in:
			t.validate(ctx, shortlist)
		}
	}
}

// validate runs one validation window over a shortlist
func (t *Tier2) validate(ctx context.Context, shortlist []contracts.Candidate) {
	if len(shortlist) > t.cfg.Tier2Cap {
		shortlist = shortlist[:t.cfg.Tier2Cap]
	}

	symbols := make([]string, len(shortlist))
	for i, c := range shortlist {
		symbols[i] = c.Symbol
	}

	if !t.sameSymbols(symbols) {
		t.mu.Lock()
		t.current = symbols
		t.collected = make(map[string]contracts.Quote)
		t.mu.Unlock()

		if err := t.stream.Subscribe(ctx, symbols); err != nil {
			t.log.WithError(err).Error("tier2 subscribe failed, passing shortlist unvalidated")
			unvalidated := t.merge(shortlist)
			t.saveCheckpoint(unvalidated)
			t.publish(unvalidated)
			return
		}
	} else {
		t.log.Debug("tier2 symbol set unchanged, keeping subscription")
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(t.cfg.Tier2Window):
	}

	validated := t.merge(shortlist)
	confirmed := t.confirmedCount(validated)
	t.log.WithFields(map[string]interface{}{
		"shortlist": len(shortlist),
		"confirmed": confirmed,
	}).Info("tier2 window complete")

	if t.metrics != nil {
		t.metrics.ValidatedSymbols.Set(float64(confirmed))
	}

	t.saveCheckpoint(validated)
	t.publish(validated)
}

func (t *Tier2) sameSymbols(symbols []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(symbols) != len(t.current) {
		return false
	}
	for i, s := range symbols {
		if t.current[i] != s {
			return false
		}
	}
	return true
}

// record stores the latest quote per symbol during the window
func (t *Tier2) record(q contracts.Quote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collected[q.Symbol] = q
}

// recordTrade fills the last price when no quote arrived for the symbol
func (t *Tier2) recordTrade(tick contracts.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.collected[tick.Symbol]
	q.Symbol = tick.Symbol
	q.LastPrice = tick.Last
	t.collected[tick.Symbol] = q
}

// merge folds collected quotes into the candidates. Unconfirmed symbols
// pass through unvalidated; partial data beats silence.
func (t *Tier2) merge(shortlist []contracts.Candidate) []contracts.ValidatedCandidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]contracts.ValidatedCandidate, 0, len(shortlist))
	for _, c := range shortlist {
		vc := contracts.ValidatedCandidate{Candidate: c}

		if q, ok := t.collected[c.Symbol]; ok {
			streamPrice := q.AskPrice
			if streamPrice == 0 {
				streamPrice = q.LastPrice
			}
			if streamPrice > 0 {
				vc.Validated = true
				vc.StreamPrice = streamPrice
				vc.BidPrice = q.BidPrice
				vc.AskPrice = q.AskPrice
				if c.Price > 0 {
					vc.Variance = math.Abs(streamPrice-c.Price) / c.Price
				}
			}
		}
		out = append(out, vc)
	}
	return out
}

func (t *Tier2) confirmedCount(list []contracts.ValidatedCandidate) int {
	n := 0
	for _, vc := range list {
		if vc.Validated {
			n++
		}
	}
	return n
}

func (t *Tier2) checkpointPath() string {
	return filepath.Join(t.dataDir, validatedFile)
}

func (t *Tier2) saveCheckpoint(list []contracts.ValidatedCandidate) {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		t.log.WithError(err).Error("tier2 checkpoint marshal failed")
		return
	}
	if err := os.MkdirAll(t.dataDir, 0o755); err != nil {
		t.log.WithError(err).Error("tier2 checkpoint dir failed")
		return
	}
	if err := os.WriteFile(t.checkpointPath(), data, 0o644); err != nil {
		t.log.WithError(err).Error("tier2 checkpoint write failed")
	}
}

// loadCheckpoint re-queues the persisted validated list so Tier-3 has a
// symbol set before the first validation window completes
func (t *Tier2) loadCheckpoint() {
	data, err := os.ReadFile(t.checkpointPath())
	if err != nil {
		return
	}

	var list []contracts.ValidatedCandidate
	if err := json.Unmarshal(data, &list); err != nil {
		t.log.WithError(err).Warn("tier2 checkpoint unreadable")
		return
	}
	if len(list) > 0 {
		t.log.WithField("validated", len(list)).Info("tier2 checkpoint restored")
		t.publish(list)
	}
}

// publish replaces any unconsumed list, latest wins
func (t *Tier2) publish(list []contracts.ValidatedCandidate) {
	for {
		select {
		case t.out <- list:
			return
		default:
			select {
			case <-t.out:
			default:
			}
		}
	}
}
