// Package main implements the evtxtriage command line tool. It reads
// decoded Windows event log records (JSONL), classifies them into
// forensic categories, and prints a triage report.
//
// Usage
//
// Analyze one or more record files
//     evtxtriage analyze Security.jsonl System.jsonl
// Restrict to a time window and export CSVs
//     evtxtriage analyze --start "2025-01-01 00:00:00" --end "2025-01-31 23:59:59" -o exports/ Security.jsonl
// Also load the full event list into a review database
//     evtxtriage analyze --db-driver sqlite --db-dsn review.db Security.jsonl
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seshat-forensics/evtxtriage/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "evtxtriage",
		Short: "Triage decoded Windows event log records",
	}
	rootCmd.AddCommand(Analyze(cfg))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
