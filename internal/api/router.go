package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalscan/scanner/internal/api/handlers"
	"github.com/signalscan/scanner/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
// SSOT: all route registration happens in this function.
func NewRouter(
	scanner *handlers.ScannerHandler,
	enrichment *handlers.EnrichmentHandler,
	news *handlers.NewsHandler,
	jobs *handlers.JobsHandler,
	hub *handlers.EventHub,
	registry *prometheus.Registry,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	// Realtime event push
	r.HandleFunc("/ws/events", hub.Serve)

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Channel and snapshot endpoints
	api.HandleFunc("/channels", scanner.GetChannels).Methods("GET")
	api.HandleFunc("/channels/{channel}", scanner.GetChannelSymbols).Methods("GET")
	api.HandleFunc("/snapshots/{symbol}", scanner.GetSnapshot).Methods("GET")
	api.HandleFunc("/universe/stats", scanner.GetUniverseStats).Methods("GET")
	api.HandleFunc("/scan/trigger/{symbol}", scanner.TriggerScan).Methods("POST")

	// Enrichment endpoints
	api.HandleFunc("/enrichment", enrichment.GetWatchlist).Methods("GET")
	api.HandleFunc("/enrichment/{symbol}", enrichment.GetRecord).Methods("GET")

	// News endpoints
	api.HandleFunc("/news/quota", news.GetQuota).Methods("GET")
	api.HandleFunc("/news/vault/{symbol}", news.GetVaultEntries).Methods("GET")

	// Scheduler stats
	api.HandleFunc("/jobs", jobs.GetStats).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "signalscan-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
