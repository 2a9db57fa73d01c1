package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the PostgreSQL connection",
	Long: `Tests the archive database connection and prints pool statistics.

This command:
- Loads DATABASE_URL from config
- Opens the connection pool
- Runs a ping
- Displays connection pool statistics

Example:
  go run ./cmd/signalscan test-db
  go run ./cmd/signalscan test-db --env production`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SignalScan Database Connection Test ===")

	// Load configuration
	fmt.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	fmt.Printf("Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	// Create database connection
	fmt.Println("Connecting to database...")
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("Connection pool established")

	// Check connection
	fmt.Println("Testing connection (Ping)...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	fmt.Println("Ping successful")

	// Pool statistics
	stats := db.Stats()
	fmt.Println("\nConnection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", stats.MaxConns())
	fmt.Printf("   Total Connections: %d\n", stats.TotalConns())
	fmt.Printf("   Acquired Connections: %d\n", stats.AcquiredConns())
	fmt.Printf("   Idle Connections: %d\n", stats.IdleConns())
	fmt.Printf("   Acquire Count: %d\n", stats.AcquireCount())
	fmt.Printf("   Acquire Duration: %v\n", stats.AcquireDuration())

	fmt.Println("\nAll tests passed")
	return nil
}

// maskPassword hides the credential section of a database URL for display
func maskPassword(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
