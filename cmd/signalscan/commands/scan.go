package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalscan/scanner/internal/api"
	"github.com/signalscan/scanner/internal/api/handlers"
	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/events"
	"github.com/signalscan/scanner/internal/external/alpaca"
	"github.com/signalscan/scanner/internal/external/tradier"
	"github.com/signalscan/scanner/internal/external/yahoo"
	"github.com/signalscan/scanner/internal/news"
	"github.com/signalscan/scanner/internal/news/providers"
	"github.com/signalscan/scanner/internal/news/vault"
	"github.com/signalscan/scanner/internal/pipeline"
	"github.com/signalscan/scanner/internal/scheduler"
	"github.com/signalscan/scanner/internal/scheduler/jobs"
	"github.com/signalscan/scanner/internal/session"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/internal/telemetry"
	"github.com/signalscan/scanner/internal/universe"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/database"
	"github.com/signalscan/scanner/pkg/httputil"
	"github.com/signalscan/scanner/pkg/logger"
	"github.com/signalscan/scanner/pkg/redis"
)

const vaultFile = "news_vault.json"

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the full scanning pipeline",
	Long: `Runs the complete scanner: the three-tier pipeline, the news
router, the scheduler and the REST/websocket API.

This command:
- Sweeps the universe hourly through the bulk prefilter
- Validates the shortlist against the streaming quote feed
- Drives channel categorization from the realtime tick feed
- Rotates secondary news vendors and ingests the news stream
- Serves the API, metrics and the event websocket

Example:
  go run ./cmd/signalscan scan
  go run ./cmd/signalscan scan --port 8090`,
	RunE: runScan,
}

var scanPort string

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanPort, "port", "", "API server port (overrides PORT)")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SignalScan ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if scanPort != "" {
		cfg.Port = scanPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing scanner")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Optional storage backends. JSON checkpoints stay authoritative;
	// Postgres archives and Redis mirrors are bonuses.
	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		log.Info("Connected to database")
	} else {
		log.Warn("DATABASE_URL not set, archive repositories disabled")
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, quota mirror disabled")
		redisClient = redis.Disabled()
	}
	defer redisClient.Close()

	// 4. HTTP client shared by every REST vendor
	httpClient := httputil.New(cfg, log)

	// 5. State stores
	uni := universe.NewStore(log)
	snaps := snapshot.NewStore(log)
	enriched := enrich.NewStore(cfg.Scanner.EnrichmentCap, log)
	windows := snapshot.NewWindowSet(cfg.Scanner.WindowSpan)
	membership := categorize.NewMembership()
	bus := events.NewBus(256)

	newsVault := vault.New(cfg.News.VaultExpiration, log)
	vaultPath := filepath.Join(cfg.DataDir, vaultFile)
	if err := newsVault.Load(vaultPath); err != nil {
		log.WithError(err).Warn("News vault checkpoint unreadable")
	}

	if db != nil {
		newsVault.SetArchive(vault.NewRepository(db, log))
		enriched.SetArchive(enrich.NewRepository(db, log))
	}

	// 6. Categorization engine; breaking-news channel keys off the vault
	engine := categorize.NewEngine(cfg.Gates, func(symbol string, now time.Time) bool {
		return newsVault.HasBreaking(symbol, cfg.News.BreakingWindow, now)
	})

	// 7. News pipeline
	quotaCache := redis.NewCache(redisClient, "news")
	quota := news.NewQuotaTracker(quotaCache, log)
	if err := quota.Restore(ctx); err != nil {
		log.WithError(err).Warn("Quota mirror restore failed")
	}

	// 8. Market-data clients
	yahooClient := yahoo.NewClient(cfg.Yahoo, httpClient, log)
	quoteStream := alpaca.NewQuoteStream(cfg.Alpaca, log)
	newsStream := alpaca.NewNewsStream(cfg.Alpaca, log)
	tradierClient := tradier.NewClient(cfg.Tradier, httpClient, log)
	tickStream := tradier.NewTickStream(cfg.Tradier, tradierClient, log)

	// 9. Pipeline stages
	tier1 := pipeline.NewTier1(cfg.Scanner, cfg.DataDir, yahooClient, uni, enriched, snaps, log)
	tier1.SetFloatSource(yahooClient)
	tier2 := pipeline.NewTier2(cfg.Scanner, cfg.DataDir, quoteStream, tier1.Shortlists(), log)

	onWatch := func(symbol string) bool {
		if len(membership.Channels(symbol)) > 0 {
			return true
		}
		_, ok := enriched.Get(symbol)
		return ok
	}
	processor := news.NewProcessor(newsVault, bus, cfg.News, onWatch, tier1.Trigger, log)
	newsRouter := news.NewRouter(providers.All(httpClient, cfg.News, log), quota, processor, membership.ActiveSymbols, cfg.News, log)
	newsRouter.SetLimiter(redis.NewRateLimiter(redisClient, "news"))

	tier3 := pipeline.NewTier3(
		cfg.Scanner,
		tickStream,
		tier2.Validated(),
		snaps,
		windows,
		engine,
		membership,
		enriched,
		bus,
		newsRouter.FetchOnce,
		session.SystemClock{},
		log,
	)

	manager := pipeline.NewManager(tier1, tier2, tier3, uni, snaps, enriched, cfg.DataDir, log)

	// 10. Telemetry
	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)
	if cfg.MetricsEnabled {
		tier1.SetMetrics(metrics)
		tier2.SetMetrics(metrics)
		tier3.SetMetrics(metrics)
		processor.SetMetrics(metrics)
		newsRouter.SetMetrics(metrics)

		sampler := telemetry.NewSampler(metrics, membership, enriched, func() int {
			capped := 0
			for _, vq := range quota.Snapshot() {
				if vq.Capped {
					capped++
				}
			}
			return capped
		})
		go sampler.Run(ctx)
	}

	// 11. Scheduler
	sched := scheduler.New(log)
	for _, job := range []scheduler.Job{
		jobs.NewDailyResetJob(manager, membership, windows, newsRouter, log),
		jobs.NewCheckpointJob(manager, newsVault, vaultPath, log),
		jobs.NewVaultSweepJob(newsVault, log),
		jobs.NewEnrichmentDecayJob(enriched, log),
		jobs.NewUniverseRebuildJob(universe.NewDirectory(httpClient, log), uni, log),
		jobs.NewUniverseRefreshJob(yahooClient, uni, cfg.Scanner.ChunkSize, log),
	} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
	}

	// 12. API server
	hub := handlers.NewEventHub(bus, log)
	router := api.NewRouter(
		handlers.NewScannerHandler(membership, snaps, uni, manager.Trigger, log),
		handlers.NewEnrichmentHandler(enriched, log),
		handlers.NewNewsHandler(newsVault, quota, newsRouter, log),
		handlers.NewJobsHandler(sched, log),
		hub,
		registry,
		log,
	)
	server := api.New(cfg, log, router)

	// 13. Start everything
	manager.Start(ctx)
	sched.Start()
	go hub.Run(ctx)
	go newsRouter.Run(ctx)
	if newsStream.Enabled() {
		newsStream.OnArticle(func(article contracts.Article) {
			processor.Process(article, time.Now())
		})
		go newsStream.Run(ctx)
	} else {
		log.Warn("Alpaca credentials missing, news stream disabled")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\nScanner running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scanner...")
	cancel()
	sched.Stop()
	manager.Stop()
	if err := newsVault.Save(vaultPath); err != nil {
		log.WithError(err).Error("News vault checkpoint failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Scanner stopped")
	return nil
}
