package providers

import (
	"context"
	"fmt"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantage adapts the NEWS_SENTIMENT endpoint
type AlphaVantage struct {
	http *httputil.Client
	key  string
	log  *logger.Logger
}

func NewAlphaVantage(http *httputil.Client, key string, log *logger.Logger) *AlphaVantage {
	return &AlphaVantage{http: http, key: key, log: log}
}

func (a *AlphaVantage) Name() string  { return "alphavantage" }
func (a *AlphaVantage) Enabled() bool { return a.key != "" }

type alphaVantageResponse struct {
	Feed []struct {
		Title           string `json:"title"`
		Summary         string `json:"summary"`
		URL             string `json:"url"`
		TimePublished   string `json:"time_published"`
		TickerSentiment []struct {
			Ticker string `json:"ticker"`
		} `json:"ticker_sentiment"`
	} `json:"feed"`
}

func (a *AlphaVantage) Fetch(ctx context.Context, symbol string) ([]contracts.Article, error) {
	url := fmt.Sprintf("%s/query?function=NEWS_SENTIMENT&tickers=%s&apikey=%s",
		alphaVantageBaseURL, symbol, a.key)

	var resp alphaVantageResponse
	if err := getJSON(ctx, a.http, url, &resp); err != nil {
		return nil, fmt.Errorf("alphavantage news: %w", err)
	}

	articles := make([]contracts.Article, 0, len(resp.Feed))
	for _, r := range resp.Feed {
		// compact UTC form, e.g. 20260901T133000
		published, err := parseTime(r.TimePublished, "20060102T150405")
		if err != nil {
			a.log.WithError(err).WithField("symbol", symbol).Debug("alphavantage timestamp skipped")
			continue
		}

		symbols := make([]string, 0, len(r.TickerSentiment))
		for _, t := range r.TickerSentiment {
			if t.Ticker != "" {
				symbols = append(symbols, t.Ticker)
			}
		}
		if len(symbols) == 0 {
			symbols = []string{symbol}
		}

		articles = append(articles, contracts.Article{
			Title:     r.Title,
			Summary:   r.Summary,
			URL:       r.URL,
			Symbols:   symbols,
			Published: published,
			Source:    a.Name(),
		})
	}
	return articles, nil
}
