package contracts

import "time"

// Article is the canonical normalized article record every vendor adapter
// produces. Adapters map their wire formats into this shape; all routing,
// classification and vault logic works on it.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Symbols   []string  `json:"symbols"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
}

// Age returns the article age relative to now
func (a Article) Age(now time.Time) time.Duration {
	return now.Sub(a.Published)
}

// DedupKey returns the vault deduplication key: the URL when present,
// otherwise symbol:title-prefix.
func (a Article) DedupKey() string {
	if a.URL != "" {
		return a.URL
	}

	symbol := ""
	if len(a.Symbols) > 0 {
		symbol = a.Symbols[0]
	}

	title := a.Title
	if len(title) > 100 {
		title = title[:100]
	}
	return symbol + ":" + title
}
