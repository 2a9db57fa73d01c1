// Package providers holds the REST adapters for the secondary news
// vendors. Each adapter maps its wire format into contracts.Article;
// classification happens downstream in the shared processor.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

// ErrQuotaExceeded marks a quota-class vendor response. The router caps
// the vendor for the rest of the day when it sees this.
var ErrQuotaExceeded = errors.New("vendor quota exceeded")

const articleLimit = 10

// Provider fetches recent articles for one symbol
type Provider interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context, symbol string) ([]contracts.Article, error)
}

// All returns every secondary adapter in rotation priority order. Adapters
// without an API key report Enabled() == false and are skipped.
func All(http *httputil.Client, cfg config.NewsConfig, log *logger.Logger) []Provider {
	return []Provider{
		NewPolygon(http, cfg.PolygonKey, log),
		NewFMP(http, cfg.FMPKey, log),
		NewMarketaux(http, cfg.MarketauxKey, log),
		NewNewsAPI(http, cfg.NewsAPIKey, log),
		NewAlphaVantage(http, cfg.AlphaVantageKey, log),
		NewFinnhub(http, cfg.FinnhubKey, log),
	}
}

// getJSON performs the request and decodes the body, translating
// quota-class statuses into ErrQuotaExceeded
func getJSON(ctx context.Context, client *httputil.Client, url string, dest interface{}) error {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		if httputil.IsQuotaStatus(resp.StatusCode) {
			return fmt.Errorf("%w: status %d", ErrQuotaExceeded, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

// parseTime tries each layout in order
func parseTime(value string, layouts ...string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
