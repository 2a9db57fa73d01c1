package contracts

import "time"

// Candidate is one Tier-1 shortlist entry passed to Tier-2.
// SSOT: Tier-1 → Tier-2 hand-off shape.
type Candidate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	AvgVolume int64   `json:"avg_volume"`
}

// ValidatedCandidate is a Tier-1 candidate merged with the streaming quote
// collected during the Tier-2 validation window.
// SSOT: Tier-2 → Tier-3 hand-off shape. Symbols without a streaming
// confirmation flow through with Validated=false; partial data beats silence.
type ValidatedCandidate struct {
	Candidate

	Validated   bool    `json:"validated"`
	StreamPrice float64 `json:"stream_price,omitempty"`
	BidPrice    float64 `json:"bid_price,omitempty"`
	AskPrice    float64 `json:"ask_price,omitempty"`
	// Variance is |stream - snapshot| / snapshot, 0 when unvalidated.
	Variance float64 `json:"price_variance,omitempty"`
}

// Quote is one streamed bid/ask/trade observation from the Tier-2 feed
type Quote struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	AskPrice  float64   `json:"ask_price"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}

// Tick is one tick-level observation from the Tier-3 feed
type Tick struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar is one aggregated price bar from the bulk historical query
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// SymbolMeta is the per-symbol metadata read during Tier-1 confirmation
type SymbolMeta struct {
	Symbol            string  `json:"symbol"`
	PreviousClose     float64 `json:"previous_close"`
	AvgVolume         int64   `json:"avg_volume"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	Week52High        float64 `json:"week_52_high"`
}
