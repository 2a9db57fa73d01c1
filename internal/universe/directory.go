package universe

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
)

// Exchange symbol-directory endpoints (pipe-separated listing files)
const (
	nasdaqListedURL = "https://www.nasdaqtrader.com/dynamic/SymDir/nasdaqlisted.txt"
	otherListedURL  = "https://www.nasdaqtrader.com/dynamic/SymDir/otherlisted.txt"
)

var validSymbol = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Directory downloads the listed-symbol files used by the weekly universe
// rebuild
type Directory struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewDirectory creates a symbol directory client
func NewDirectory(httpClient *httputil.Client, log *logger.Logger) *Directory {
	return &Directory{
		httpClient: httpClient,
		logger:     log,
	}
}

// FetchSymbols downloads both listing files and returns the merged,
// deduplicated symbol set. Test issues and malformed rows are skipped.
func (d *Directory) FetchSymbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var symbols []string

	for _, url := range []string{nasdaqListedURL, otherListedURL} {
		body, err := d.fetch(ctx, url)
		if err != nil {
			// One file is better than none
			d.logger.WithError(err).WithField("url", url).Warn("Symbol directory fetch failed")
			continue
		}

		for _, sym := range ParseListingFile(body) {
			if !seen[sym] {
				seen[sym] = true
				symbols = append(symbols, sym)
			}
		}
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols from any directory source")
	}

	d.logger.WithField("count", len(symbols)).Info("Fetched symbol directory")
	return symbols, nil
}

func (d *Directory) fetch(ctx context.Context, url string) (string, error) {
	resp, err := d.httpClient.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("directory fetch status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseListingFile extracts symbols from a pipe-separated listing file.
// Layout: header row, data rows, trailer row starting with "File Creation
// Time". The "Test Issue" column (Y/N) filters exchange test symbols.
func ParseListingFile(body string) []string {
	lines := strings.Split(body, "\n")
	if len(lines) < 2 {
		return nil
	}

	header := strings.Split(lines[0], "|")
	symCol, testCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Symbol", "ACT Symbol":
			symCol = i
		case "Test Issue":
			testCol = i
		}
	}
	if symCol < 0 {
		return nil
	}

	var out []string
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "File Creation Time") {
			break
		}

		fields := strings.Split(line, "|")
		if symCol >= len(fields) {
			continue
		}
		if testCol >= 0 && testCol < len(fields) && strings.TrimSpace(fields[testCol]) == "Y" {
			continue
		}

		sym := strings.TrimSpace(fields[symCol])
		if validSymbol.MatchString(sym) {
			out = append(out, sym)
		}
	}
	return out
}
