package telemetry

import (
	"context"
	"time"

	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/enrich"
)

const sampleInterval = 15 * time.Second

// Sampler publishes the gauge-style metrics that are cheaper to read on a
// timer than to maintain on every tick.
type Sampler struct {
	metrics    *Metrics
	membership *categorize.Membership
	enriched   *enrich.Store
	capped     func() int
}

// NewSampler creates a gauge sampler over the given stores. capped reports
// how many secondary news vendors are currently out of quota.
func NewSampler(m *Metrics, membership *categorize.Membership, enriched *enrich.Store, capped func() int) *Sampler {
	if capped == nil {
		capped = func() int { return 0 }
	}
	return &Sampler{
		metrics:    m,
		membership: membership,
		enriched:   enriched,
		capped:     capped,
	}
}

// Run samples until the context is cancelled
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample publishes one observation of every sampled gauge
func (s *Sampler) Sample() {
	for channel, members := range s.membership.Snapshot() {
		s.metrics.ChannelMembers.WithLabelValues(channel).Set(float64(len(members)))
	}
	s.metrics.EnrichedSymbols.Set(float64(s.enriched.Len()))
	s.metrics.ProvidersCapped.Set(float64(s.capped()))
}
