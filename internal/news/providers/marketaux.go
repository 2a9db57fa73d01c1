package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const marketauxBaseURL = "https://api.marketaux.com"

// Marketaux adapts the marketaux news endpoint
type Marketaux struct {
	http *httputil.Client
	key  string
	log  *logger.Logger
}

func NewMarketaux(http *httputil.Client, key string, log *logger.Logger) *Marketaux {
	return &Marketaux{http: http, key: key, log: log}
}

func (m *Marketaux) Name() string  { return "marketaux" }
func (m *Marketaux) Enabled() bool { return m.key != "" }

type marketauxResponse struct {
	Data []struct {
		UUID        string `json:"uuid"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
		Entities    []struct {
			Symbol string `json:"symbol"`
		} `json:"entities"`
	} `json:"data"`
}

func (m *Marketaux) Fetch(ctx context.Context, symbol string) ([]contracts.Article, error) {
	url := fmt.Sprintf("%s/v1/news/all?symbols=%s&filter_entities=true&limit=%d&api_token=%s",
		marketauxBaseURL, symbol, articleLimit, m.key)

	var resp marketauxResponse
	if err := getJSON(ctx, m.http, url, &resp); err != nil {
		return nil, fmt.Errorf("marketaux news: %w", err)
	}

	articles := make([]contracts.Article, 0, len(resp.Data))
	for _, r := range resp.Data {
		published, err := parseTime(r.PublishedAt, "2006-01-02T15:04:05.000000Z", time.RFC3339)
		if err != nil {
			m.log.WithError(err).WithField("symbol", symbol).Debug("marketaux timestamp skipped")
			continue
		}

		symbols := make([]string, 0, len(r.Entities))
		for _, e := range r.Entities {
			if e.Symbol != "" {
				symbols = append(symbols, e.Symbol)
			}
		}
		if len(symbols) == 0 {
			symbols = []string{symbol}
		}

		articles = append(articles, contracts.Article{
			ID:        r.UUID,
			Title:     r.Title,
			Summary:   r.Description,
			URL:       r.URL,
			Symbols:   symbols,
			Published: published,
			Source:    m.Name(),
		})
	}
	return articles, nil
}
