package news

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/events"
	"github.com/signalscan/scanner/internal/news/providers"
	"github.com/signalscan/scanner/internal/news/vault"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
	"github.com/signalscan/scanner/pkg/redis"
)

type fakeProvider struct {
	name     string
	enabled  bool
	articles []contracts.Article
	err      error
	calls    []string
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) Fetch(_ context.Context, symbol string) ([]contracts.Article, error) {
	f.calls = append(f.calls, symbol)
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

func newTestRouter(t *testing.T, fakes []*fakeProvider, active []string) (*Router, *QuotaTracker, *events.Bus) {
	t.Helper()

	v := vault.New(72*time.Hour, logger.Nop())
	bus := events.NewBus(64)
	quota := newTracker()

	watchSet := make(map[string]bool, len(active))
	for _, s := range active {
		watchSet[s] = true
	}
	processor := NewProcessor(v, bus, newsConfig(),
		func(symbol string) bool { return watchSet[symbol] }, nil, logger.Nop())

	list := make([]providers.Provider, len(fakes))
	for i, f := range fakes {
		list[i] = f
	}

	cfg := config.NewsConfig{SecondaryInterval: time.Hour}
	router := NewRouter(list, quota, processor,
		func() []string { return active }, cfg, logger.Nop())
	// tests drive cycles directly, no pacing wanted
	router.pacer.SetLimit(1e6)
	return router, quota, bus
}

func TestCycleUsesHighestPriorityVendor(t *testing.T) {
	polygon := &fakeProvider{name: VendorPolygon, enabled: true}
	fmp := &fakeProvider{name: VendorFMP, enabled: true}

	router, _, _ := newTestRouter(t, []*fakeProvider{polygon, fmp}, []string{"AAA", "BBB"})
	router.RunCycle(context.Background())

	assert.Equal(t, []string{"AAA", "BBB"}, polygon.calls)
	assert.Empty(t, fmp.calls)
}

func TestCycleSkipsKeylessVendor(t *testing.T) {
	polygon := &fakeProvider{name: VendorPolygon, enabled: false}
	fmp := &fakeProvider{name: VendorFMP, enabled: true}

	router, quota, _ := newTestRouter(t, []*fakeProvider{polygon, fmp}, []string{"AAA"})
	router.RunCycle(context.Background())

	assert.Empty(t, polygon.calls)
	assert.Equal(t, []string{"AAA"}, fmp.calls)
	assert.True(t, quota.IsCapped(VendorPolygon))
}

func TestCycleCapsOnQuotaError(t *testing.T) {
	polygon := &fakeProvider{name: VendorPolygon, enabled: true, err: providers.ErrQuotaExceeded}

	router, quota, _ := newTestRouter(t, []*fakeProvider{polygon}, []string{"AAA", "BBB"})
	router.RunCycle(context.Background())

	// cycle aborts on the first quota failure
	assert.Equal(t, []string{"AAA"}, polygon.calls)
	assert.True(t, quota.IsCapped(VendorPolygon))
}

func TestCycleFeedsProcessor(t *testing.T) {
	now := time.Now()
	polygon := &fakeProvider{
		name:    VendorPolygon,
		enabled: true,
		articles: []contracts.Article{{
			Title:     "Quarterly update",
			URL:       "https://example.com/x",
			Symbols:   []string{"AAA"},
			Published: now.Add(-time.Hour),
			Source:    VendorPolygon,
		}},
	}

	router, _, bus := newTestRouter(t, []*fakeProvider{polygon}, []string{"AAA"})
	router.RunCycle(context.Background())

	select {
	case ev := <-bus.News():
		assert.Equal(t, "AAA", ev.Symbol)
	default:
		t.Fatal("expected news event from cycle")
	}
}

func TestDegradedModeAndReset(t *testing.T) {
	ctx := context.Background()
	polygon := &fakeProvider{name: VendorPolygon, enabled: true}

	router, quota, _ := newTestRouter(t, []*fakeProvider{polygon}, []string{"AAA"})

	for _, v := range quota.Snapshot() {
		quota.MarkCapped(ctx, v.Name)
	}

	router.RunCycle(ctx)
	assert.True(t, router.Degraded())
	assert.Empty(t, polygon.calls, "degraded mode performs no secondary fetches")

	router.ResetDaily(ctx, time.Now())
	assert.False(t, router.Degraded())

	router.RunCycle(ctx)
	assert.Equal(t, []string{"AAA"}, polygon.calls, "first vendor eligible again after reset")
}

func TestSharedLimiterFailsOpenWithoutRedis(t *testing.T) {
	polygon := &fakeProvider{name: VendorPolygon, enabled: true}

	router, _, _ := newTestRouter(t, []*fakeProvider{polygon}, []string{"AAA"})
	router.SetLimiter(redis.NewRateLimiter(redis.Disabled(), "test"))
	router.RunCycle(context.Background())

	assert.Equal(t, []string{"AAA"}, polygon.calls)
}

func TestFetchOnceIsOncePerDay(t *testing.T) {
	ctx := context.Background()
	polygon := &fakeProvider{name: VendorPolygon, enabled: true}

	router, _, _ := newTestRouter(t, []*fakeProvider{polygon}, nil)

	router.FetchOnce(ctx, "AAA")
	router.FetchOnce(ctx, "AAA")
	require.Len(t, polygon.calls, 1)

	router.ResetDaily(ctx, time.Now())
	router.FetchOnce(ctx, "AAA")
	assert.Len(t, polygon.calls, 2)
}
