package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const finnhubBaseURL = "https://finnhub.io"

// Finnhub adapts the company-news endpoint, scoped to today's articles
type Finnhub struct {
	http *httputil.Client
	key  string
	log  *logger.Logger
}

func NewFinnhub(http *httputil.Client, key string, log *logger.Logger) *Finnhub {
	return &Finnhub{http: http, key: key, log: log}
}

func (f *Finnhub) Name() string  { return "finnhub" }
func (f *Finnhub) Enabled() bool { return f.key != "" }

type finnhubArticle struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
	Related  string `json:"related"`
}

func (f *Finnhub) Fetch(ctx context.Context, symbol string) ([]contracts.Article, error) {
	today := time.Now().UTC().Format("2006-01-02")
	url := fmt.Sprintf("%s/api/v1/company-news?symbol=%s&from=%s&to=%s&token=%s",
		finnhubBaseURL, symbol, today, today, f.key)

	var resp []finnhubArticle
	if err := getJSON(ctx, f.http, url, &resp); err != nil {
		return nil, fmt.Errorf("finnhub news: %w", err)
	}

	if len(resp) > articleLimit {
		resp = resp[:articleLimit]
	}

	articles := make([]contracts.Article, 0, len(resp))
	for _, r := range resp {
		if r.Datetime <= 0 {
			continue
		}

		sym := r.Related
		if sym == "" {
			sym = symbol
		}

		articles = append(articles, contracts.Article{
			ID:        fmt.Sprintf("finnhub_%d", r.ID),
			Title:     r.Headline,
			Summary:   r.Summary,
			URL:       r.URL,
			Symbols:   []string{sym},
			Published: time.Unix(r.Datetime, 0).UTC(),
			Source:    f.Name(),
		})
	}
	return articles, nil
}
