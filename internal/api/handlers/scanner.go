package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/logger"
)

// TriggerFunc queues a symbol for the next prefilter sweep
type TriggerFunc func(symbol string)

// ScannerHandler serves the channel and snapshot endpoints
type ScannerHandler struct {
	membership *categorize.Membership
	snapshots  *snapshot.Store
	universe   *universe.Store
	trigger    TriggerFunc
	logger     *logger.Logger
}

// NewScannerHandler creates a new scanner handler
func NewScannerHandler(
	membership *categorize.Membership,
	snaps *snapshot.Store,
	uni *universe.Store,
	trigger TriggerFunc,
	log *logger.Logger,
) *ScannerHandler {
	return &ScannerHandler{
		membership: membership,
		snapshots:  snaps,
		universe:   uni,
		trigger:    trigger,
		logger:     log,
	}
}

// ChannelsResponse maps each channel to its current member symbols
type ChannelsResponse struct {
	Channels map[string][]string `json:"channels"`
	Active   int                 `json:"active"`
}

// GetChannels returns every channel's current member set
// GET /api/channels
func (h *ScannerHandler) GetChannels(w http.ResponseWriter, r *http.Request) {
	snap := h.membership.Snapshot()
	respondJSON(w, http.StatusOK, ChannelsResponse{
		Channels: snap,
		Active:   len(h.membership.ActiveSymbols()),
	})
}

// ChannelSymbolsResponse lists one channel's members with their snapshots
type ChannelSymbolsResponse struct {
	Channel string              `json:"channel"`
	Symbols []snapshot.Snapshot `json:"symbols"`
}

// GetChannelSymbols returns the members of one channel with live snapshots
// GET /api/channels/{channel}
func (h *ScannerHandler) GetChannelSymbols(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]

	if !validChannel(channel) {
		respondError(w, http.StatusNotFound, "Unknown channel: "+channel)
		return
	}

	symbols := h.membership.Symbols(channel)
	out := make([]snapshot.Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		if snap, ok := h.snapshots.Get(sym); ok {
			out = append(out, snap)
		}
	}

	respondJSON(w, http.StatusOK, ChannelSymbolsResponse{
		Channel: channel,
		Symbols: out,
	})
}

// GetSnapshot returns the live snapshot for one symbol
// GET /api/snapshots/{symbol}
func (h *ScannerHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	snap, ok := h.snapshots.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "Symbol not tracked: "+symbol)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// UniverseStatsResponse summarizes the tracked universe
type UniverseStatsResponse struct {
	Symbols  int `json:"symbols"`
	Tracked  int `json:"tracked"`
	Channels int `json:"channels"`
}

// GetUniverseStats returns universe and tracking counts
// GET /api/universe/stats
func (h *ScannerHandler) GetUniverseStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, UniverseStatsResponse{
		Symbols:  h.universe.Len(),
		Tracked:  h.snapshots.Len(),
		Channels: len(h.membership.ActiveSymbols()),
	})
}

// TriggerScan queues a symbol for the next prefilter sweep
// POST /api/scan/trigger/{symbol}
func (h *ScannerHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "Symbol required")
		return
	}

	h.trigger(symbol)
	h.logger.WithField("symbol", symbol).Info("Manual scan trigger queued")

	respondJSON(w, http.StatusAccepted, map[string]string{
		"symbol": symbol,
		"status": "queued",
	})
}

func validChannel(channel string) bool {
	for _, ch := range categorize.AllChannels {
		if ch == channel {
			return true
		}
	}
	return false
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
