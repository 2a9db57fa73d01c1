package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// SSOT: every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	Database DatabaseConfig
	Redis    RedisConfig
	DataDir  string // JSON checkpoint directory

	// Market-data vendors
	Yahoo   YahooConfig
	Alpaca  AlpacaConfig
	Tradier TradierConfig

	// News vendors
	News NewsConfig

	// Pipeline tuning
	Scanner ScannerConfig

	// Channel gate thresholds
	Gates GatesConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL disables the
// archive repositories; JSON checkpoints stay authoritative.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// YahooConfig holds the bulk-bar / metadata vendor configuration
type YahooConfig struct {
	ChartBaseURL string
	QuoteBaseURL string
}

// AlpacaConfig holds the streaming quote + news vendor configuration
type AlpacaConfig struct {
	KeyID     string
	SecretKey string
	StreamURL string // quote/trade stream
	NewsURL   string // news stream
}

// TradierConfig holds the tick-feed vendor configuration
type TradierConfig struct {
	AccessToken string
	BaseURL     string
	StreamURL   string
}

// NewsConfig holds news vendor credentials and router tuning.
// A missing API key disables that vendor's adapter without crashing the router.
type NewsConfig struct {
	PolygonKey      string
	FMPKey          string
	MarketauxKey    string
	NewsAPIKey      string
	AlphaVantageKey string
	FinnhubKey      string

	VaultExpiration   time.Duration // drop vault entries older than this
	BreakingWindow    time.Duration // breaking iff keyword match and younger
	KeywordWindow     time.Duration // hard age cutoff for keyword-matched articles
	RecentWindow      time.Duration // plain news age cutoff
	SecondaryInterval time.Duration // one secondary cycle per interval
}

// ScannerConfig holds pipeline tuning
type ScannerConfig struct {
	UniverseCap   int           // symbols considered per Tier-1 sweep
	ChunkSize     int           // symbols per bulk bar request
	ScanInterval  time.Duration // Tier-1 cadence
	MinPrice      float64       // Tier-1 price band
	MaxPrice      float64
	MinAvgVolume  int64 // Tier-1 average-volume floor
	Tier2Cap      int   // streaming vendor symbol limit
	Tier2Window   time.Duration
	Tier3Cap      int // tick vendor symbol limit
	WindowSpan    time.Duration
	EnrichmentCap int // max enriched records
}

// GatesConfig holds channel gate thresholds. These are tunable defaults,
// not contracts; internal/categorize owns the gate logic.
type GatesConfig struct {
	PreGapMaxPrice  float64
	GapPct          float64 // shared |gap| floor for PreGap / HOD / RunUp
	PreGapMinVolume int64
	FloatCapM       float64 // millions of shares

	BandMinPrice float64 // HOD / RunUp price band
	BandMaxPrice float64
	HODMinRVOL   float64

	RunUpFloatCapM float64
	PennyRVOL      float64 // P-RunUp floor

	RvslMaxPrice float64
	RvslMinRVOL  float64
	RvslGapPct   float64
}

// Load reads configuration from environment variables.
// SSOT: this is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		DataDir: getEnv("DATA_DIR", "data"),

		Yahoo: YahooConfig{
			ChartBaseURL: getEnv("YAHOO_CHART_BASE_URL", "https://query1.finance.yahoo.com"),
			QuoteBaseURL: getEnv("YAHOO_QUOTE_BASE_URL", "https://finance.yahoo.com"),
		},

		Alpaca: AlpacaConfig{
			KeyID:     getEnv("ALPACA_API_KEY", ""),
			SecretKey: getEnv("ALPACA_SECRET_KEY", ""),
			StreamURL: getEnv("ALPACA_STREAM_URL", "wss://stream.data.alpaca.markets/v2/iex"),
			NewsURL:   getEnv("ALPACA_NEWS_URL", "wss://stream.data.alpaca.markets/v1beta1/news"),
		},

		Tradier: TradierConfig{
			AccessToken: getEnv("TRADIER_ACCESS_TOKEN", ""),
			BaseURL:     getEnv("TRADIER_BASE_URL", "https://api.tradier.com"),
			StreamURL:   getEnv("TRADIER_STREAM_URL", "wss://ws.tradier.com/v1/markets/events"),
		},

		News: NewsConfig{
			PolygonKey:      getEnv("POLYGON_API_KEY", ""),
			FMPKey:          getEnv("FMP_API_KEY", ""),
			MarketauxKey:    getEnv("MARKETAUX_API_KEY", ""),
			NewsAPIKey:      getEnv("NEWSAPI_API_KEY", ""),
			AlphaVantageKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
			FinnhubKey:      getEnv("FINNHUB_API_KEY", ""),

			VaultExpiration:   getEnvAsDuration("NEWS_VAULT_EXPIRATION", "72h"),
			BreakingWindow:    getEnvAsDuration("NEWS_BREAKING_WINDOW", "2h"),
			KeywordWindow:     getEnvAsDuration("NEWS_KEYWORD_WINDOW", "72h"),
			RecentWindow:      getEnvAsDuration("NEWS_RECENT_WINDOW", "12h"),
			SecondaryInterval: getEnvAsDuration("NEWS_SECONDARY_INTERVAL", "1h"),
		},

		Scanner: ScannerConfig{
			UniverseCap:   getEnvAsInt("SCAN_UNIVERSE_CAP", 8000),
			ChunkSize:     getEnvAsInt("SCAN_CHUNK_SIZE", 500),
			ScanInterval:  getEnvAsDuration("SCAN_INTERVAL", "1h"),
			MinPrice:      getEnvAsFloat("SCAN_MIN_PRICE", 1.0),
			MaxPrice:      getEnvAsFloat("SCAN_MAX_PRICE", 10.0),
			MinAvgVolume:  int64(getEnvAsInt("SCAN_MIN_AVG_VOLUME", 2_000_000)),
			Tier2Cap:      getEnvAsInt("TIER2_SYMBOL_CAP", 500),
			Tier2Window:   getEnvAsDuration("TIER2_WINDOW", "30s"),
			Tier3Cap:      getEnvAsInt("TIER3_SYMBOL_CAP", 375),
			WindowSpan:    getEnvAsDuration("PRICE_WINDOW_SPAN", "10m"),
			EnrichmentCap: getEnvAsInt("ENRICHMENT_CAP", 200),
		},

		Gates: GatesConfig{
			PreGapMaxPrice:  getEnvAsFloat("GATE_PREGAP_MAX_PRICE", 15.0),
			GapPct:          getEnvAsFloat("GATE_GAP_PCT", 10.0),
			PreGapMinVolume: int64(getEnvAsInt("GATE_PREGAP_MIN_VOLUME", 500_000)),
			FloatCapM:       getEnvAsFloat("GATE_FLOAT_CAP_M", 100.0),
			BandMinPrice:    getEnvAsFloat("GATE_BAND_MIN_PRICE", 1.0),
			BandMaxPrice:    getEnvAsFloat("GATE_BAND_MAX_PRICE", 15.0),
			HODMinRVOL:      getEnvAsFloat("GATE_HOD_MIN_RVOL", 5.0),
			RunUpFloatCapM:  getEnvAsFloat("GATE_RUNUP_FLOAT_CAP_M", 10.0),
			PennyRVOL:       getEnvAsFloat("GATE_PENNY_RVOL", 7.0),
			RvslMaxPrice:    getEnvAsFloat("GATE_RVSL_MAX_PRICE", 15.0),
			RvslMinRVOL:     getEnvAsFloat("GATE_RVSL_MIN_RVOL", 8.0),
			RvslGapPct:      getEnvAsFloat("GATE_RVSL_GAP_PCT", 8.0),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scanner.ChunkSize <= 0 {
		return fmt.Errorf("SCAN_CHUNK_SIZE must be positive")
	}

	if c.Scanner.MinPrice >= c.Scanner.MaxPrice {
		return fmt.Errorf("SCAN_MIN_PRICE must be below SCAN_MAX_PRICE")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
