package news

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/pkg/logger"
)

func newTracker() *QuotaTracker {
	return NewQuotaTracker(nil, logger.Nop())
}

func TestActiveSecondaryPriorityOrder(t *testing.T) {
	q := newTracker()
	ctx := context.Background()

	vendor, ok := q.ActiveSecondary()
	require.True(t, ok)
	assert.Equal(t, VendorPolygon, vendor)

	// exhaust polygon: rotation advances to fmp
	for i := 0; i < 120; i++ {
		q.IncrementCycle(ctx, VendorPolygon)
	}
	vendor, ok = q.ActiveSecondary()
	require.True(t, ok)
	assert.Equal(t, VendorFMP, vendor)
}

func TestIncrementCapsAtLimit(t *testing.T) {
	q := newTracker()
	ctx := context.Background()

	q.IncrementCycle(ctx, VendorMarketaux) // limit is 1
	assert.True(t, q.IsCapped(VendorMarketaux))

	for _, v := range q.Snapshot() {
		if v.Name == VendorMarketaux {
			assert.Equal(t, 1, v.Used)
			assert.True(t, v.Capped)
		}
	}
}

func TestCountersMonotonicBetweenResets(t *testing.T) {
	q := newTracker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q.IncrementCycle(ctx, VendorPolygon)
	}

	var prev int
	for _, v := range q.Snapshot() {
		if v.Name == VendorPolygon {
			prev = v.Used
		}
	}
	assert.Equal(t, 5, prev)

	q.IncrementCycle(ctx, VendorPolygon)
	for _, v := range q.Snapshot() {
		if v.Name == VendorPolygon {
			assert.Greater(t, v.Used, prev)
		}
	}
}

func TestMarkCappedSticky(t *testing.T) {
	// a cap from an HTTP error holds even with budget left
	q := newTracker()
	ctx := context.Background()

	q.MarkCapped(ctx, VendorPolygon)
	assert.True(t, q.IsCapped(VendorPolygon))

	vendor, ok := q.ActiveSecondary()
	require.True(t, ok)
	assert.Equal(t, VendorFMP, vendor)
}

func TestAllExhausted(t *testing.T) {
	q := newTracker()
	ctx := context.Background()

	for _, v := range q.Snapshot() {
		q.MarkCapped(ctx, v.Name)
	}

	_, ok := q.ActiveSecondary()
	assert.False(t, ok)
}

func TestResetClearsEverything(t *testing.T) {
	q := newTracker()
	ctx := context.Background()

	for _, v := range q.Snapshot() {
		q.MarkCapped(ctx, v.Name)
		q.IncrementCycle(ctx, v.Name)
	}
	_, ok := q.ActiveSecondary()
	require.False(t, ok)

	q.Reset(ctx, time.Now())

	vendor, ok := q.ActiveSecondary()
	require.True(t, ok)
	assert.Equal(t, VendorPolygon, vendor, "first vendor eligible again after reset")

	for _, v := range q.Snapshot() {
		assert.Zero(t, v.Used)
		assert.False(t, v.Capped)
	}
}

func TestIncrementUnknownVendorIgnored(t *testing.T) {
	q := newTracker()
	q.IncrementCycle(context.Background(), "gdelt")

	for _, v := range q.Snapshot() {
		assert.Zero(t, v.Used)
	}
}
