package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Monitor a running scanner",
	Long: `Polls a running scanner's API and displays its state.

Displayed information:
- Universe, tracked and channel counts
- Channel membership
- News vendor rotation state
- Scheduled job statistics

Example:
  go run ./cmd/signalscan status
  go run ./cmd/signalscan status --refresh 5s --addr http://localhost:8090`,
	RunE: runStatus,
}

var (
	// Status flags
	statusRefresh time.Duration
	statusAddr    string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().DurationVar(&statusRefresh, "refresh", 3*time.Second, "refresh interval")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "scanner API base URL")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SignalScan Status Monitor ===")
	fmt.Printf("Target: %s | Refresh: %v\n", statusAddr, statusRefresh)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	client := &http.Client{Timeout: 5 * time.Second}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	// Initial display
	displayStatus(client)

	for {
		select {
		case <-sigChan:
			fmt.Println("\nStatus monitor stopped")
			return nil

		case <-ticker.C:
			// Clear screen (ANSI escape code)
			fmt.Print("\033[H\033[2J")

			fmt.Println("=== SignalScan Status Monitor ===")
			fmt.Printf("Target: %s | Last update: %s\n\n", statusAddr, time.Now().Format("15:04:05"))

			displayStatus(client)
		}
	}
}

func displayStatus(client *http.Client) {
	var stats struct {
		Symbols  int `json:"symbols"`
		Tracked  int `json:"tracked"`
		Channels int `json:"channels"`
	}
	if err := fetchJSON(client, "/api/universe/stats", &stats); err != nil {
		fmt.Printf("Scanner unreachable: %v\n", err)
		return
	}

	fmt.Println("Universe")
	fmt.Println("----------------------------------")
	fmt.Printf("%-15s %10d\n", "Symbols:", stats.Symbols)
	fmt.Printf("%-15s %10d\n", "Tracked:", stats.Tracked)
	fmt.Printf("%-15s %10d\n", "In channels:", stats.Channels)
	fmt.Println()

	var channels struct {
		Channels map[string][]string `json:"channels"`
		Active   int                 `json:"active"`
	}
	if err := fetchJSON(client, "/api/channels", &channels); err == nil {
		fmt.Println("Channels")
		fmt.Println("----------------------------------")
		names := make([]string, 0, len(channels.Channels))
		for name := range channels.Channels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-15s %10d\n", name+":", len(channels.Channels[name]))
		}
		fmt.Println()
	}

	var quota struct {
		Vendors []struct {
			Name   string `json:"name"`
			Capped bool   `json:"capped"`
		} `json:"vendors"`
		Degraded bool `json:"degraded"`
		Vault    int  `json:"vault_size"`
	}
	if err := fetchJSON(client, "/api/news/quota", &quota); err == nil {
		fmt.Println("News Vendors")
		fmt.Println("----------------------------------")
		for _, v := range quota.Vendors {
			state := "ok"
			if v.Capped {
				state = "capped"
			}
			fmt.Printf("%-15s %10s\n", v.Name+":", state)
		}
		fmt.Printf("%-15s %10d\n", "Vault size:", quota.Vault)
		if quota.Degraded {
			fmt.Println("All secondary vendors capped, primary only")
		}
		fmt.Println()
	}

	var jobs map[string]struct {
		TotalRuns   int        `json:"total_runs"`
		SuccessRate float64    `json:"success_rate"`
		LastRun     *time.Time `json:"last_run,omitempty"`
	}
	if err := fetchJSON(client, "/api/jobs", &jobs); err == nil && len(jobs) > 0 {
		fmt.Println("Scheduled Jobs")
		fmt.Println("----------------------------------")
		names := make([]string, 0, len(jobs))
		for name := range jobs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			job := jobs[name]
			last := "never"
			if job.LastRun != nil {
				last = job.LastRun.Format("15:04:05")
			}
			fmt.Printf("%-25s runs=%-4d success=%5.1f%% last=%s\n", name, job.TotalRuns, job.SuccessRate, last)
		}
		fmt.Println()
	}

	fmt.Println("Press Ctrl+C to stop")
}

func fetchJSON(client *http.Client, path string, out interface{}) error {
	resp, err := client.Get(statusAddr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
