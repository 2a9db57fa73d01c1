package yahoo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FetchFloatMillions scrapes the key-statistics page for the float when the
// quote API omits sharesOutstanding. Slow path, used once per symbol per
// session and only for symbols that reached Tier-2.
func (c *Client) FetchFloatMillions(ctx context.Context, symbol string) (float64, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return 0, err
	}

	fullURL := fmt.Sprintf("%s/quote/%s/key-statistics", c.webURL, symbol)
	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; signalscan/1.0)",
	})
	if err != nil {
		return 0, fmt.Errorf("yahoo statistics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("yahoo statistics: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("yahoo statistics parse: %w", err)
	}

	floatM, found := extractFloat(doc)
	if !found {
		return 0, fmt.Errorf("yahoo statistics: float row not found for %s", symbol)
	}
	return floatM, nil
}

// extractFloat walks the statistics tables for the "Float" row
func extractFloat(doc *goquery.Document) (float64, bool) {
	var value float64
	var found bool

	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		label := strings.TrimSpace(row.Find("td").First().Text())
		if !strings.HasPrefix(label, "Float") {
			return true
		}

		raw := strings.TrimSpace(row.Find("td").Last().Text())
		v, err := parseAbbreviated(raw)
		if err != nil {
			return true
		}
		value = v / 1e6
		found = true
		return false
	})

	return value, found
}

// parseAbbreviated reads Yahoo's abbreviated numbers, e.g. "54.2M", "1.1B"
func parseAbbreviated(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("empty value")
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(raw, "k"), strings.HasSuffix(raw, "K"):
		multiplier = 1e3
		raw = raw[:len(raw)-1]
	case strings.HasSuffix(raw, "M"):
		multiplier = 1e6
		raw = raw[:len(raw)-1]
	case strings.HasSuffix(raw, "B"):
		multiplier = 1e9
		raw = raw[:len(raw)-1]
	case strings.HasSuffix(raw, "T"):
		multiplier = 1e12
		raw = raw[:len(raw)-1]
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return v * multiplier, nil
}
