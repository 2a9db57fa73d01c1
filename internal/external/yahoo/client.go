package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const (
	DefaultChartBaseURL = "https://query1.finance.yahoo.com"
	DefaultQuoteBaseURL = "https://finance.yahoo.com"
)

// Client handles communication with the Yahoo Finance quote API.
// SSOT: all Yahoo calls go through this client.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	webURL     string
	pacer      *rate.Limiter
}

// NewClient creates a new Yahoo Finance client
func NewClient(cfg config.YahooConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	if cfg.ChartBaseURL == "" {
		cfg.ChartBaseURL = DefaultChartBaseURL
	}
	if cfg.QuoteBaseURL == "" {
		cfg.QuoteBaseURL = DefaultQuoteBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.ChartBaseURL,
		webURL:     cfg.QuoteBaseURL,
		pacer:      rate.NewLimiter(rate.Limit(4), 2),
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                   string  `json:"symbol"`
			RegularMarketPrice       float64 `json:"regularMarketPrice"`
			RegularMarketVolume      int64   `json:"regularMarketVolume"`
			RegularMarketPrevClose   float64 `json:"regularMarketPreviousClose"`
			RegularMarketDayHigh     float64 `json:"regularMarketDayHigh"`
			AverageDailyVolume3Month int64   `json:"averageDailyVolume3Month"`
			SharesOutstanding        int64   `json:"sharesOutstanding"`
			FiftyTwoWeekHigh         float64 `json:"fiftyTwoWeekHigh"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Quote is one symbol's bulk quote row
type Quote struct {
	Symbol            string
	Price             float64
	Volume            int64
	PrevClose         float64
	DayHigh           float64
	AvgVolume         int64
	SharesOutstanding int64
	Week52High        float64
}

// FetchQuotes pulls one bulk chunk of quotes. Yahoo accepts a few hundred
// comma-joined symbols per call; the Tier-1 sweep feeds 500 at a time.
// SSOT: bulk quote calls happen only here.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("yahoo quote: unexpected status %d", resp.StatusCode)
	}

	var decoded quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("yahoo quote decode: %w", err)
	}
	if e := decoded.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("yahoo quote: %s (%s)", e.Description, e.Code)
	}

	quotes := make([]Quote, 0, len(decoded.QuoteResponse.Result))
	for _, r := range decoded.QuoteResponse.Result {
		if r.Symbol == "" {
			continue
		}
		quotes = append(quotes, Quote{
			Symbol:            r.Symbol,
			Price:             r.RegularMarketPrice,
			Volume:            r.RegularMarketVolume,
			PrevClose:         r.RegularMarketPrevClose,
			DayHigh:           r.RegularMarketDayHigh,
			AvgVolume:         r.AverageDailyVolume3Month,
			SharesOutstanding: r.SharesOutstanding,
			Week52High:        r.FiftyTwoWeekHigh,
		})
	}
	return quotes, nil
}

// Meta converts a quote row into the shared metadata shape
func (q Quote) Meta() contracts.SymbolMeta {
	return contracts.SymbolMeta{
		Symbol:            q.Symbol,
		PreviousClose:     q.PrevClose,
		AvgVolume:         q.AvgVolume,
		SharesOutstanding: float64(q.SharesOutstanding),
		Week52High:        q.Week52High,
	}
}
