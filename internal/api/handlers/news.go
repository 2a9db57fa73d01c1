package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/signalscan/scanner/internal/news"
	"github.com/signalscan/scanner/internal/news/vault"
	"github.com/signalscan/scanner/pkg/logger"
)

// NewsHandler serves the provider quota and vault endpoints
type NewsHandler struct {
	vault  *vault.Vault
	quota  *news.QuotaTracker
	router *news.Router
	logger *logger.Logger
}

// NewNewsHandler creates a new news handler
func NewNewsHandler(v *vault.Vault, quota *news.QuotaTracker, router *news.Router, log *logger.Logger) *NewsHandler {
	return &NewsHandler{
		vault:  v,
		quota:  quota,
		router: router,
		logger: log,
	}
}

// QuotaResponse reports per-vendor usage for the current rotation cycle
type QuotaResponse struct {
	Vendors  []news.VendorQuota `json:"vendors"`
	Degraded bool               `json:"degraded"`
	Vault    int                `json:"vault_size"`
}

// GetQuota returns the rotation state of every secondary provider
// GET /api/news/quota
func (h *NewsHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	degraded := false
	if h.router != nil {
		degraded = h.router.Degraded()
	}

	respondJSON(w, http.StatusOK, QuotaResponse{
		Vendors:  h.quota.Snapshot(),
		Degraded: degraded,
		Vault:    h.vault.Size(),
	})
}

// VaultResponse lists the stored articles for one symbol, newest first
type VaultResponse struct {
	Symbol  string        `json:"symbol"`
	Entries []vault.Entry `json:"entries"`
}

// GetVaultEntries returns the deduplicated articles held for a symbol
// GET /api/news/vault/{symbol}
func (h *NewsHandler) GetVaultEntries(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	respondJSON(w, http.StatusOK, VaultResponse{
		Symbol:  symbol,
		Entries: h.vault.EntriesFor(symbol),
	})
}
