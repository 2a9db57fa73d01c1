package news

import (
	"context"
	"sync"
	"time"

	"github.com/signalscan/scanner/pkg/logger"
	"github.com/signalscan/scanner/pkg/redis"
)

// Secondary vendor names in rotation priority order
const (
	VendorPolygon      = "polygon"
	VendorFMP          = "fmp"
	VendorMarketaux    = "marketaux"
	VendorNewsAPI      = "newsapi"
	VendorAlphaVantage = "alphavantage"
	VendorFinnhub      = "finnhub"
)

// rotationOrder is the fixed secondary priority. The first uncapped vendor
// with cycles left serves the next full pass over the watch set.
var rotationOrder = []string{
	VendorPolygon,
	VendorFMP,
	VendorMarketaux,
	VendorNewsAPI,
	VendorAlphaVantage,
	VendorFinnhub,
}

// defaultCycleLimits tracks each vendor's free-tier daily cycle budget
var defaultCycleLimits = map[string]int{
	VendorPolygon:      120,
	VendorFMP:          3,
	VendorMarketaux:    1,
	VendorNewsAPI:      1,
	VendorAlphaVantage: 25,
	VendorFinnhub:      60,
}

// VendorQuota is one vendor's published quota state
type VendorQuota struct {
	Name   string `json:"name"`
	Used   int    `json:"used"`
	Limit  int    `json:"limit"`
	Capped bool   `json:"capped"`
}

// QuotaTracker holds per-vendor cycle counters and sticky capped flags.
// Capped stays set until Reset, even if the counter would allow more work;
// a vendor that erred out mid-window must not be retried until tomorrow.
// State is mirrored to Redis so a restart inside the window keeps the caps.
type QuotaTracker struct {
	mu      sync.Mutex
	used    map[string]int
	limits  map[string]int
	capped  map[string]bool
	lastRst time.Time

	cache *redis.Cache
	log   *logger.Logger
}

const quotaCacheKey = "news:quota"

// NewQuotaTracker creates a tracker with the default cycle limits.
// cache may be nil when Redis is disabled.
func NewQuotaTracker(cache *redis.Cache, log *logger.Logger) *QuotaTracker {
	limits := make(map[string]int, len(defaultCycleLimits))
	for name, limit := range defaultCycleLimits {
		limits[name] = limit
	}
	return &QuotaTracker{
		used:   make(map[string]int),
		limits: limits,
		capped: make(map[string]bool),
		cache:  cache,
		log:    log,
	}
}

// ActiveSecondary returns the first vendor in priority order that is
// neither capped nor out of cycles. ok is false when every vendor is
// exhausted, which puts the router in degraded primary-only mode.
func (q *QuotaTracker) ActiveSecondary() (name string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, vendor := range rotationOrder {
		if q.capped[vendor] {
			continue
		}
		if q.used[vendor] < q.limits[vendor] {
			return vendor, true
		}
	}
	return "", false
}

// IncrementCycle counts one completed pass for a vendor and caps it when
// the budget is reached. Counters never decrease between resets.
func (q *QuotaTracker) IncrementCycle(ctx context.Context, vendor string) {
	q.mu.Lock()
	if _, known := q.limits[vendor]; !known {
		q.mu.Unlock()
		return
	}

	q.used[vendor]++
	if q.used[vendor] >= q.limits[vendor] && !q.capped[vendor] {
		q.capped[vendor] = true
		q.log.WithField("vendor", vendor).
			WithField("limit", q.limits[vendor]).
			Warn("news vendor exhausted")
	}
	q.mu.Unlock()

	q.mirror(ctx)
}

// MarkCapped flags a vendor after a quota-class HTTP error. The flag is
// sticky until the daily reset.
func (q *QuotaTracker) MarkCapped(ctx context.Context, vendor string) {
	q.mu.Lock()
	if !q.capped[vendor] {
		q.capped[vendor] = true
		q.log.WithField("vendor", vendor).Warn("news vendor capped on error")
	}
	q.mu.Unlock()

	q.mirror(ctx)
}

// IsCapped reports a vendor's sticky capped flag
func (q *QuotaTracker) IsCapped(vendor string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capped[vendor]
}

// Reset atomically clears every cap and counter. Runs at the 04:00 ET
// boundary.
func (q *QuotaTracker) Reset(ctx context.Context, now time.Time) {
	q.mu.Lock()
	q.used = make(map[string]int)
	q.capped = make(map[string]bool)
	q.lastRst = now
	q.mu.Unlock()

	q.log.Info("news vendor quotas reset")
	q.mirror(ctx)
}

// Snapshot returns the current state of every vendor in priority order
func (q *QuotaTracker) Snapshot() []VendorQuota {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]VendorQuota, 0, len(rotationOrder))
	for _, vendor := range rotationOrder {
		out = append(out, VendorQuota{
			Name:   vendor,
			Used:   q.used[vendor],
			Limit:  q.limits[vendor],
			Capped: q.capped[vendor],
		})
	}
	return out
}

type quotaMirror struct {
	Used    map[string]int  `json:"used"`
	Capped  map[string]bool `json:"capped"`
	ResetAt time.Time       `json:"reset_at"`
}

func (q *QuotaTracker) mirror(ctx context.Context) {
	if q.cache == nil {
		return
	}

	q.mu.Lock()
	state := quotaMirror{
		Used:    make(map[string]int, len(q.used)),
		Capped:  make(map[string]bool, len(q.capped)),
		ResetAt: q.lastRst,
	}
	for k, v := range q.used {
		state.Used[k] = v
	}
	for k, v := range q.capped {
		state.Capped[k] = v
	}
	q.mu.Unlock()

	if err := q.cache.Set(ctx, quotaCacheKey, state, 26*time.Hour); err != nil {
		q.log.WithError(err).Debug("quota mirror write failed")
	}
}

// Restore reloads mirrored state from Redis. Missing state is not an
// error; the tracker starts fresh.
func (q *QuotaTracker) Restore(ctx context.Context) error {
	if q.cache == nil {
		return nil
	}

	var state quotaMirror
	found, err := q.cache.Get(ctx, quotaCacheKey, &state)
	if err != nil || !found {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if state.Used != nil {
		q.used = state.Used
	}
	if state.Capped != nil {
		q.capped = state.Capped
	}
	q.lastRst = state.ResetAt
	return nil
}
