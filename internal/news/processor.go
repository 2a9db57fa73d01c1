package news

import (
	"regexp"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/events"
	"github.com/signalscan/scanner/internal/news/vault"
	"github.com/signalscan/scanner/internal/telemetry"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

// tickerLike accepts the symbol shapes we forward as scan triggers
var tickerLike = regexp.MustCompile(`^[A-Z]{1,5}$`)

// WatchlistFunc reports whether a symbol is on the active watch set
type WatchlistFunc func(symbol string) bool

// TriggerFunc receives ticker-like symbols from unmatched breaking
// articles for priority inclusion in the next bulk sweep
type TriggerFunc func(symbol string)

// Processor is the single article path every feed funnels through. Vendor
// adapters and the websocket stream normalize into contracts.Article and
// hand off here; classification, dedup and fan-out happen in one place.
type Processor struct {
	vault    *vault.Vault
	bus      *events.Bus
	onWatch  WatchlistFunc
	trigger  TriggerFunc
	breaking time.Duration
	keyword  time.Duration
	recent   time.Duration
	metrics  *telemetry.Metrics
	log      *logger.Logger
}

// NewProcessor wires the article path
func NewProcessor(v *vault.Vault, bus *events.Bus, cfg config.NewsConfig, onWatch WatchlistFunc, trigger TriggerFunc, log *logger.Logger) *Processor {
	if onWatch == nil {
		onWatch = func(string) bool { return false }
	}
	if trigger == nil {
		trigger = func(string) {}
	}
	recent := cfg.RecentWindow
	if recent <= 0 {
		recent = cfg.KeywordWindow
	}
	return &Processor{
		vault:    v,
		bus:      bus,
		onWatch:  onWatch,
		trigger:  trigger,
		breaking: cfg.BreakingWindow,
		keyword:  cfg.KeywordWindow,
		recent:   recent,
		log:      log,
	}
}

// SetMetrics attaches the instrument set. Optional; nil-safe without it.
func (p *Processor) SetMetrics(m *telemetry.Metrics) {
	p.metrics = m
}

// Process classifies one article and fans it out. Returns true when the
// article was fresh (inserted into the vault); duplicates and stale
// articles are dropped without events.
func (p *Processor) Process(article contracts.Article, now time.Time) bool {
	age := article.Age(now)
	if age > p.keyword {
		return false
	}

	hasKeyword := MatchesBreakingKeyword(article.Title + " " + article.Summary)

	// plain articles go stale sooner; keyword hits stay actionable for
	// the full keyword window
	if !hasKeyword && age > p.recent {
		return false
	}

	isBreaking := age <= p.breaking && hasKeyword

	if !p.vault.Insert(article, isBreaking, now) {
		if p.metrics != nil {
			p.metrics.ArticlesDeduped.Inc()
		}
		return false
	}
	if p.metrics != nil {
		p.metrics.ArticlesProcessed.Inc()
	}

	matched := false
	for _, symbol := range article.Symbols {
		if !p.onWatch(symbol) {
			continue
		}
		matched = true
		p.bus.PublishNews(events.NewsEvent{
			Symbol:   symbol,
			Title:    article.Title,
			URL:      article.URL,
			Source:   article.Source,
			Age:      age,
			Breaking: isBreaking,
			At:       now,
		})
	}

	// breaking articles about symbols we are not yet scanning seed the
	// next bulk sweep
	if isBreaking && !matched {
		for _, symbol := range article.Symbols {
			if tickerLike.MatchString(symbol) {
				p.log.WithField("symbol", symbol).
					WithField("title", article.Title).
					Info("breaking article forwarded as scan trigger")
				p.trigger(symbol)
			}
		}
	}

	return true
}
