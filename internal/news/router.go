package news

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalscan/scanner/internal/news/providers"
	"github.com/signalscan/scanner/internal/telemetry"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
	"github.com/signalscan/scanner/pkg/redis"
)

// ActiveSymbolsFunc returns the current watch set for secondary sweeps
type ActiveSymbolsFunc func() []string

// Shared per-vendor call bound enforced through Redis when several scanner
// processes point at the same keys. Free-tier vendors throttle around one
// call per second; a minute window absorbs bursts.
const (
	sharedCallLimit  = 60
	sharedCallWindow = time.Minute
)

// Router runs the secondary vendor rotation. The primary path (the
// websocket news stream) feeds the processor directly; the router fills
// the gaps by polling one vendor per cycle across the active watch set,
// advancing to the next vendor only when the current one runs out of
// budget. With every vendor exhausted the router idles in degraded
// primary-only mode until the daily reset.
type Router struct {
	providers map[string]providers.Provider
	quota     *QuotaTracker
	processor *Processor
	active    ActiveSymbolsFunc
	interval  time.Duration
	pacer     *rate.Limiter
	limiter   *redis.RateLimiter
	metrics   *telemetry.Metrics
	log       *logger.Logger

	mu          sync.Mutex
	fetchedOnce map[string]bool
	degraded    bool
}

// NewRouter creates the secondary rotation driver
func NewRouter(list []providers.Provider, quota *QuotaTracker, processor *Processor, active ActiveSymbolsFunc, cfg config.NewsConfig, log *logger.Logger) *Router {
	byName := make(map[string]providers.Provider, len(list))
	for _, p := range list {
		byName[p.Name()] = p
	}
	if active == nil {
		active = func() []string { return nil }
	}

	interval := cfg.SecondaryInterval
	if interval <= 0 {
		interval = time.Hour
	}

	return &Router{
		providers:   byName,
		quota:       quota,
		processor:   processor,
		active:      active,
		interval:    interval,
		pacer:       rate.NewLimiter(rate.Every(time.Second), 1),
		log:         log,
		fetchedOnce: make(map[string]bool),
	}
}

// SetMetrics attaches the instrument set. Optional; nil-safe without it.
func (r *Router) SetMetrics(m *telemetry.Metrics) {
	r.metrics = m
}

// SetLimiter attaches the shared Redis rate limiter so vendor calls stay
// bounded across processes. Optional; nil-safe without it.
func (r *Router) SetLimiter(l *redis.RateLimiter) {
	r.limiter = l
}

// Run drives secondary cycles until the context is cancelled
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// RunCycle performs one secondary pass: the highest-priority vendor with
// budget sweeps every active symbol, then its cycle counter advances.
func (r *Router) RunCycle(ctx context.Context) {
	vendor, provider, ok := r.nextVendor(ctx)
	if !ok {
		r.noteDegraded()
		return
	}
	r.clearDegraded()

	symbols := r.active()
	if len(symbols) == 0 {
		return
	}

	r.log.WithField("vendor", vendor).
		WithField("symbols", len(symbols)).
		Debug("secondary news cycle start")

	now := time.Now()
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		if err := r.pacer.Wait(ctx); err != nil {
			return
		}

		if capped := r.fetchSymbol(ctx, provider, symbol, now); capped {
			return
		}
	}

	r.quota.IncrementCycle(ctx, vendor)
}

// nextVendor resolves the active secondary, capping vendors that have no
// API key so the rotation never stalls on them
func (r *Router) nextVendor(ctx context.Context) (string, providers.Provider, bool) {
	for {
		vendor, ok := r.quota.ActiveSecondary()
		if !ok {
			return "", nil, false
		}

		provider := r.providers[vendor]
		if provider == nil || !provider.Enabled() {
			r.quota.MarkCapped(ctx, vendor)
			continue
		}
		return vendor, provider, true
	}
}

// fetchSymbol pulls one symbol from one vendor and feeds the processor.
// Returns true when the vendor hit its quota and the cycle must stop.
func (r *Router) fetchSymbol(ctx context.Context, p providers.Provider, symbol string, now time.Time) bool {
	if r.limiter != nil {
		allowed, _, err := r.limiter.Allow(ctx, redis.RateLimitConfig{
			Key:    p.Name(),
			Limit:  sharedCallLimit,
			Window: sharedCallWindow,
		})
		if err != nil {
			// Fail open; the quota tracker still bounds total calls
			r.log.WithError(err).Debug("shared rate limit check failed")
		} else if !allowed {
			return false
		}
	}

	if r.metrics != nil {
		r.metrics.ProviderCalls.WithLabelValues(p.Name()).Inc()
	}

	articles, err := p.Fetch(ctx, symbol)
	if err != nil {
		if errors.Is(err, providers.ErrQuotaExceeded) {
			r.quota.MarkCapped(ctx, p.Name())
			return true
		}
		r.log.WithError(err).
			WithField("vendor", p.Name()).
			WithField("symbol", symbol).
			Debug("secondary fetch failed")
		return false
	}

	for _, article := range articles {
		r.processor.Process(article, now)
	}
	return false
}

// FetchOnce performs the one-time on-demand lookup for a symbol that just
// entered a channel. Repeat calls for the same symbol are no-ops until the
// daily reset.
func (r *Router) FetchOnce(ctx context.Context, symbol string) {
	r.mu.Lock()
	if r.fetchedOnce[symbol] {
		r.mu.Unlock()
		return
	}
	r.fetchedOnce[symbol] = true
	r.mu.Unlock()

	_, provider, ok := r.nextVendor(ctx)
	if !ok {
		return
	}
	r.fetchSymbol(ctx, provider, symbol, time.Now())
}

// ResetDaily clears quotas and the once-per-day fetch markers. Runs at the
// 04:00 ET boundary.
func (r *Router) ResetDaily(ctx context.Context, now time.Time) {
	r.quota.Reset(ctx, now)

	r.mu.Lock()
	r.fetchedOnce = make(map[string]bool)
	r.degraded = false
	r.mu.Unlock()
}

func (r *Router) noteDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.degraded {
		r.degraded = true
		r.log.Warn("all secondary news vendors exhausted, primary-only mode")
	}
}

func (r *Router) clearDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = false
}

// Degraded reports whether every secondary vendor is exhausted
func (r *Router) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}
