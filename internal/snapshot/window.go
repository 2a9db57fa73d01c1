package snapshot

import (
	"sync"
	"time"
)

type sample struct {
	ts    time.Time
	price float64
}

// Window is a rolling per-symbol price window bounded to a fixed span.
// Appends prune anything older than the span, so memory per symbol stays
// proportional to tick rate times span.
type Window struct {
	mu      sync.Mutex
	span    time.Duration
	samples []sample
}

// NewWindow creates a rolling window covering the given span
func NewWindow(span time.Duration) *Window {
	return &Window{span: span}
}

// Append records a price sample and drops samples older than the span
func (w *Window) Append(ts time.Time, price float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, sample{ts: ts, price: price})

	cutoff := ts.Add(-w.span)
	firstLive := 0
	for firstLive < len(w.samples) && w.samples[firstLive].ts.Before(cutoff) {
		firstLive++
	}
	if firstLive > 0 {
		w.samples = append(w.samples[:0], w.samples[firstLive:]...)
	}
}

// MinSince returns the minimum price observed at or after the cutoff.
// ok is false when no samples fall inside the interval.
func (w *Window) MinSince(cutoff time.Time) (min float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range w.samples {
		if s.ts.Before(cutoff) {
			continue
		}
		if !ok || s.price < min {
			min = s.price
			ok = true
		}
	}
	return min, ok
}

// Len returns the number of retained samples
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Thresholds for quick-move detection. A quick move is an input predicate
// to channel gates, not a channel itself.
const (
	quickMove5Pct  = 5.0
	quickMove10Pct = 10.0
)

// DetectQuickMove checks the 5-minute and 10-minute windows independently:
// a 5% rise off the 5-minute low or a 10% rise off the 10-minute low. When
// both fire, the larger-window move wins the annotation.
func (w *Window) DetectQuickMove(current float64, now time.Time) *QuickMove {
	var hit *QuickMove

	if min5, ok := w.MinSince(now.Add(-5 * time.Minute)); ok && min5 > 0 {
		pct := (current - min5) / min5 * 100
		if pct >= quickMove5Pct {
			hit = &QuickMove{Pct: pct, Window: 5 * time.Minute, At: now}
		}
	}

	if min10, ok := w.MinSince(now.Add(-10 * time.Minute)); ok && min10 > 0 {
		pct := (current - min10) / min10 * 100
		if pct >= quickMove10Pct {
			hit = &QuickMove{Pct: pct, Window: 10 * time.Minute, At: now}
		}
	}

	return hit
}

// WindowSet keys rolling windows by symbol
type WindowSet struct {
	mu      sync.Mutex
	span    time.Duration
	windows map[string]*Window
}

// NewWindowSet creates a per-symbol window collection
func NewWindowSet(span time.Duration) *WindowSet {
	return &WindowSet{
		span:    span,
		windows: make(map[string]*Window),
	}
}

// Get returns the symbol's window, creating it on first use
func (ws *WindowSet) Get(symbol string) *Window {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.windows[symbol]
	if !ok {
		w = NewWindow(ws.span)
		ws.windows[symbol] = w
	}
	return w
}

// Reset drops every window. Called at the daily reset boundary.
func (ws *WindowSet) Reset() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.windows = make(map[string]*Window)
}
