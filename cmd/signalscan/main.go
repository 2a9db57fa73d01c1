package main

import (
	"os"

	"github.com/signalscan/scanner/cmd/signalscan/commands"
)

// main is the entry point for the SignalScan CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
