package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/logger"
)

func scannerFixture(t *testing.T) (*ScannerHandler, *categorize.Membership, *snapshot.Store, *[]string) {
	t.Helper()

	membership := categorize.NewMembership()
	snaps := snapshot.NewStore(logger.Nop())
	uni := universe.NewStore(logger.Nop())
	uni.Rebuild([]string{"SCAN", "AAA"})

	var triggered []string
	h := NewScannerHandler(membership, snaps, uni, func(s string) {
		triggered = append(triggered, s)
	}, logger.Nop())

	return h, membership, snaps, &triggered
}

func doRequest(h http.HandlerFunc, method, path string, vars map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGetChannels(t *testing.T) {
	h, membership, _, _ := scannerFixture(t)
	membership.Update("SCAN", []string{categorize.ChannelHOD})

	rec := doRequest(h.GetChannels, "GET", "/api/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChannelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Active)
	assert.Contains(t, resp.Channels[categorize.ChannelHOD], "SCAN")
}

func TestGetChannelSymbols(t *testing.T) {
	h, membership, snaps, _ := scannerFixture(t)
	membership.Update("SCAN", []string{categorize.ChannelHOD})
	price := 4.0
	snaps.Apply("SCAN", snapshot.Patch{Price: &price}, time.Now())

	rec := doRequest(h.GetChannelSymbols, "GET", "/api/channels/HOD", map[string]string{"channel": categorize.ChannelHOD})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChannelSymbolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Symbols, 1)
	assert.Equal(t, "SCAN", resp.Symbols[0].Symbol)
	assert.Equal(t, 4.0, resp.Symbols[0].Price)
}

func TestGetChannelSymbolsUnknownChannel(t *testing.T) {
	h, _, _, _ := scannerFixture(t)

	rec := doRequest(h.GetChannelSymbols, "GET", "/api/channels/nope", map[string]string{"channel": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSnapshot(t *testing.T) {
	h, _, snaps, _ := scannerFixture(t)
	price := 4.0
	snaps.Apply("SCAN", snapshot.Patch{Price: &price}, time.Now())

	rec := doRequest(h.GetSnapshot, "GET", "/api/snapshots/scan", map[string]string{"symbol": "scan"})
	require.Equal(t, http.StatusOK, rec.Code, "symbol lookup is case-insensitive")

	rec = doRequest(h.GetSnapshot, "GET", "/api/snapshots/MISS", map[string]string{"symbol": "MISS"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerScan(t *testing.T) {
	h, _, _, triggered := scannerFixture(t)

	rec := doRequest(h.TriggerScan, "POST", "/api/scan/trigger/newz", map[string]string{"symbol": "newz"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"NEWZ"}, *triggered)
}

func TestGetWatchlistOrdering(t *testing.T) {
	store := enrich.NewStore(200, logger.Nop())
	now := time.Now()

	low := snapshot.Snapshot{Symbol: "LOW", GapPct: 9.0, RVOL: 5.0}
	high := snapshot.Snapshot{Symbol: "HIGH", GapPct: 12.0, RVOL: 9.0, Volume: 100_000}
	require.NotEmpty(t, store.CheckGates(low, now))
	require.NotEmpty(t, store.CheckGates(high, now))
	store.RecordChannelHit("HIGH", categorize.ChannelHOD, now)

	h := NewEnrichmentHandler(store, logger.Nop())
	rec := doRequest(h.GetWatchlist, "GET", "/api/enrichment", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WatchlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "HIGH", resp.Records[0].Symbol, "highest score first")
}

func TestGetRecordNotFound(t *testing.T) {
	h := NewEnrichmentHandler(enrich.NewStore(200, logger.Nop()), logger.Nop())

	rec := doRequest(h.GetRecord, "GET", "/api/enrichment/MISS", map[string]string{"symbol": "MISS"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
