package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const newsAPIBaseURL = "https://newsapi.org"

// NewsAPI adapts the newsapi.org everything endpoint. The query is a free
// text symbol search, so results may reference other companies; the
// processor's watchlist match filters those out.
type NewsAPI struct {
	http *httputil.Client
	key  string
	log  *logger.Logger
}

func NewNewsAPI(http *httputil.Client, key string, log *logger.Logger) *NewsAPI {
	return &NewsAPI{http: http, key: key, log: log}
}

func (n *NewsAPI) Name() string  { return "newsapi" }
func (n *NewsAPI) Enabled() bool { return n.key != "" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Fetch(ctx context.Context, symbol string) ([]contracts.Article, error) {
	url := fmt.Sprintf("%s/v2/everything?q=%s&sortBy=publishedAt&language=en&pageSize=%d&apiKey=%s",
		newsAPIBaseURL, symbol, articleLimit, n.key)

	var resp newsAPIResponse
	if err := getJSON(ctx, n.http, url, &resp); err != nil {
		return nil, fmt.Errorf("newsapi news: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi news: status %q", resp.Status)
	}

	articles := make([]contracts.Article, 0, len(resp.Articles))
	for _, r := range resp.Articles {
		published, err := parseTime(r.PublishedAt, time.RFC3339, "2006-01-02T15:04:05Z")
		if err != nil {
			n.log.WithError(err).WithField("symbol", symbol).Debug("newsapi timestamp skipped")
			continue
		}

		articles = append(articles, contracts.Article{
			Title:     r.Title,
			Summary:   r.Description,
			URL:       r.URL,
			Symbols:   []string{symbol},
			Published: published,
			Source:    n.Name(),
		})
	}
	return articles, nil
}
