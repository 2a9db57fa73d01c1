package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const fmpBaseURL = "https://financialmodelingprep.com"

// FMP adapts the Financial Modeling Prep stock news endpoint
type FMP struct {
	http *httputil.Client
	key  string
	log  *logger.Logger
}

func NewFMP(http *httputil.Client, key string, log *logger.Logger) *FMP {
	return &FMP{http: http, key: key, log: log}
}

func (f *FMP) Name() string  { return "fmp" }
func (f *FMP) Enabled() bool { return f.key != "" }

type fmpArticle struct {
	Title         string `json:"title"`
	Text          string `json:"text"`
	URL           string `json:"url"`
	Symbol        string `json:"symbol"`
	PublishedDate string `json:"publishedDate"`
}

func (f *FMP) Fetch(ctx context.Context, symbol string) ([]contracts.Article, error) {
	url := fmt.Sprintf("%s/api/v3/stock_news?tickers=%s&limit=%d&apikey=%s",
		fmpBaseURL, symbol, articleLimit, f.key)

	var resp []fmpArticle
	if err := getJSON(ctx, f.http, url, &resp); err != nil {
		return nil, fmt.Errorf("fmp news: %w", err)
	}

	articles := make([]contracts.Article, 0, len(resp))
	for _, r := range resp {
		published, err := parseTime(r.PublishedDate, "2006-01-02 15:04:05", time.RFC3339)
		if err != nil {
			f.log.WithError(err).WithField("symbol", symbol).Debug("fmp timestamp skipped")
			continue
		}

		sym := r.Symbol
		if sym == "" {
			sym = symbol
		}

		articles = append(articles, contracts.Article{
			Title:     r.Title,
			Summary:   r.Text,
			URL:       r.URL,
			Symbols:   []string{sym},
			Published: published,
			Source:    f.Name(),
		})
	}
	return articles, nil
}
