package events

import (
	"sync"
	"time"
)

// SnapshotEvent reports a symbol's latest evaluated state and channel
// memberships
type SnapshotEvent struct {
	Symbol    string    `json:"symbol"`
	Channels  []string  `json:"channels"`
	Price     float64   `json:"price"`
	GapPct    float64   `json:"gap_pct"`
	RVOL      float64   `json:"rvol"`
	Volume    int64     `json:"volume"`
	At        time.Time `json:"at"`
}

// NewsEvent reports one article matched to a watched symbol
type NewsEvent struct {
	Symbol   string        `json:"symbol"`
	Title    string        `json:"title"`
	URL      string        `json:"url,omitempty"`
	Source   string        `json:"source"`
	Age      time.Duration `json:"age"`
	Breaking bool          `json:"breaking"`
	At       time.Time     `json:"at"`
}

// Bus fans pipeline output to consumers over bounded queues. Publish never
// blocks: when a queue is full the oldest event is dropped so a slow
// consumer cannot stall a tick loop.
type Bus struct {
	mu       sync.Mutex
	snapshot chan SnapshotEvent
	news     chan NewsEvent

	droppedSnapshots int64
	droppedNews      int64
}

// NewBus creates a bus with the given per-queue capacity
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		snapshot: make(chan SnapshotEvent, capacity),
		news:     make(chan NewsEvent, capacity),
	}
}

// PublishSnapshot enqueues a snapshot event, dropping the oldest on overflow
func (b *Bus) PublishSnapshot(ev SnapshotEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		select {
		case b.snapshot <- ev:
			return
		default:
			select {
			case <-b.snapshot:
				b.droppedSnapshots++
			default:
			}
		}
	}
}

// PublishNews enqueues a news event, dropping the oldest on overflow
func (b *Bus) PublishNews(ev NewsEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		select {
		case b.news <- ev:
			return
		default:
			select {
			case <-b.news:
				b.droppedNews++
			default:
			}
		}
	}
}

// Snapshots returns the snapshot event queue for draining
func (b *Bus) Snapshots() <-chan SnapshotEvent {
	return b.snapshot
}

// News returns the news event queue for draining
func (b *Bus) News() <-chan NewsEvent {
	return b.news
}

// Dropped returns how many events were discarded to keep publishers
// non-blocking
func (b *Bus) Dropped() (snapshots, news int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.droppedSnapshots, b.droppedNews
}
