package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const polygonBaseURL = "https://api.polygon.io"

// Polygon adapts the polygon.io reference news endpoint
type Polygon struct {
	http *httputil.Client
	key  string
	log  *logger.Logger
}

func NewPolygon(http *httputil.Client, key string, log *logger.Logger) *Polygon {
	return &Polygon{http: http, key: key, log: log}
}

func (p *Polygon) Name() string  { return "polygon" }
func (p *Polygon) Enabled() bool { return p.key != "" }

type polygonResponse struct {
	Status  string `json:"status"`
	Results []struct {
		ID           string   `json:"id"`
		Title        string   `json:"title"`
		Description  string   `json:"description"`
		ArticleURL   string   `json:"article_url"`
		PublishedUTC string   `json:"published_utc"`
		Tickers      []string `json:"tickers"`
	} `json:"results"`
}

func (p *Polygon) Fetch(ctx context.Context, symbol string) ([]contracts.Article, error) {
	url := fmt.Sprintf("%s/v2/reference/news?ticker=%s&limit=%d&apiKey=%s",
		polygonBaseURL, symbol, articleLimit, p.key)

	var resp polygonResponse
	if err := getJSON(ctx, p.http, url, &resp); err != nil {
		return nil, fmt.Errorf("polygon news: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("polygon news: status %q", resp.Status)
	}

	articles := make([]contracts.Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		published, err := parseTime(r.PublishedUTC, time.RFC3339, "2006-01-02T15:04:05Z")
		if err != nil {
			p.log.WithError(err).WithField("symbol", symbol).Debug("polygon timestamp skipped")
			continue
		}

		symbols := r.Tickers
		if len(symbols) == 0 {
			symbols = []string{symbol}
		}

		articles = append(articles, contracts.Article{
			ID:        r.ID,
			Title:     r.Title,
			Summary:   r.Description,
			URL:       r.ArticleURL,
			Symbols:   symbols,
			Published: published,
			Source:    p.Name(),
		})
	}
	return articles, nil
}
