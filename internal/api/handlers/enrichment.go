package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/pkg/logger"
)

// EnrichmentHandler serves the cross-session watchlist endpoints
type EnrichmentHandler struct {
	store  *enrich.Store
	logger *logger.Logger
}

// NewEnrichmentHandler creates a new enrichment handler
func NewEnrichmentHandler(store *enrich.Store, log *logger.Logger) *EnrichmentHandler {
	return &EnrichmentHandler{store: store, logger: log}
}

// WatchlistResponse lists the promoted symbols ordered by score
type WatchlistResponse struct {
	Count   int             `json:"count"`
	Records []enrich.Record `json:"records"`
}

// GetWatchlist returns every promoted symbol, highest score first
// GET /api/enrichment
func (h *EnrichmentHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	symbols := h.store.WatchSymbols()

	records := make([]enrich.Record, 0, len(symbols))
	for _, sym := range symbols {
		if rec, ok := h.store.Get(sym); ok {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})

	respondJSON(w, http.StatusOK, WatchlistResponse{
		Count:   len(records),
		Records: records,
	})
}

// GetRecord returns one symbol's promotion record
// GET /api/enrichment/{symbol}
func (h *EnrichmentHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	rec, ok := h.store.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "Symbol not promoted: "+symbol)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
