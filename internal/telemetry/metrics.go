package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide instrument set. One instance per process,
// created at startup and injected where needed.
type Metrics struct {
	ScanCycles        prometheus.Counter
	CandidatesFound   prometheus.Gauge
	ValidatedSymbols  prometheus.Gauge
	TicksProcessed    prometheus.Counter
	QuickMoves        prometheus.Counter
	ChannelMembers    *prometheus.GaugeVec
	EnrichedSymbols   prometheus.Gauge
	ArticlesProcessed prometheus.Counter
	ArticlesDeduped   prometheus.Counter
	ProviderCalls     *prometheus.CounterVec
	ProvidersCapped   prometheus.Gauge
}

// New registers the instrument set on the given registry. Pass
// prometheus.DefaultRegisterer outside tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScanCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalscan_scan_cycles_total",
			Help: "Completed Tier-1 sweep cycles",
		}),
		CandidatesFound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalscan_candidates",
			Help: "Shortlist size after the latest Tier-1 sweep",
		}),
		ValidatedSymbols: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalscan_validated_symbols",
			Help: "Symbols confirmed during the latest Tier-2 window",
		}),
		TicksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalscan_ticks_total",
			Help: "Tier-3 ticks processed",
		}),
		QuickMoves: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalscan_quick_moves_total",
			Help: "Quick-move detections",
		}),
		ChannelMembers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalscan_channel_members",
			Help: "Current members per channel",
		}, []string{"channel"}),
		EnrichedSymbols: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalscan_enriched_symbols",
			Help: "Records in the enrichment store",
		}),
		ArticlesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalscan_articles_total",
			Help: "Articles accepted into the vault",
		}),
		ArticlesDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalscan_articles_deduped_total",
			Help: "Articles dropped as vault duplicates",
		}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signalscan_provider_calls_total",
			Help: "News vendor fetches",
		}, []string{"vendor"}),
		ProvidersCapped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalscan_providers_capped",
			Help: "Secondary vendors currently capped",
		}),
	}
}
