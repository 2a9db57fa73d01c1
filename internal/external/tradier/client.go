package tradier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

const DefaultBaseURL = "https://api.tradier.com"

// Client handles the Tradier REST surface.
// SSOT: Tradier REST calls go through this client.
type Client struct {
	cfg        config.TradierConfig
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a Tradier REST client
func NewClient(cfg config.TradierConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
	}
}

// Enabled reports whether a token is configured
func (c *Client) Enabled() bool {
	return c.cfg.AccessToken != ""
}

type sessionResponse struct {
	Stream struct {
		SessionID string `json:"sessionid"`
		URL       string `json:"url"`
	} `json:"stream"`
}

// CreateSession obtains a streaming session id. Session ids are short
// lived; Tier-3 requests a fresh one on every resubscribe.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("tradier token not configured")
	}

	url := c.baseURL + "/v1/markets/events/session"
	resp, err := c.httpClient.PostWithHeaders(ctx, url, nil, map[string]string{
		"Authorization": "Bearer " + c.cfg.AccessToken,
		"Accept":        "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("tradier session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("tradier session: unexpected status %d", resp.StatusCode)
	}

	var decoded sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("tradier session decode: %w", err)
	}
	if decoded.Stream.SessionID == "" {
		return "", fmt.Errorf("tradier session: empty session id")
	}

	c.logger.Debug("tradier session created")
	return decoded.Stream.SessionID, nil
}
