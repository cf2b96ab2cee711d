package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/seshat-forensics/evtxtriage/internal/analyze"
	"github.com/seshat-forensics/evtxtriage/internal/config"
	"github.com/seshat-forensics/evtxtriage/internal/database"
	"github.com/seshat-forensics/evtxtriage/internal/export"
	"github.com/seshat-forensics/evtxtriage/internal/jsonl"
	"github.com/seshat-forensics/evtxtriage/internal/model"
	"github.com/seshat-forensics/evtxtriage/internal/report"
)

// timeLayouts are the accepted forms for --start and --end.
var timeLayouts = []string{
	model.TimeFormat,
	time.RFC3339,
	"2006-01-02",
}

// Analyze is the evtxtriage analyze commandline subcommand.
func Analyze(cfg *config.Config) *cobra.Command {
	var (
		startStr  string
		endStr    string
		outputDir string
		dbDriver  string
		dbDSN     string
	)

	analyzeCommand := &cobra.Command{
		Use:   "analyze [flags] FILE...",
		Short: "Classify decoded event log records and print a triage report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(startStr, endStr)
			if err != nil {
				return err
			}

			res, err := analyze.Run(args, openSource, analyze.Options{Window: window})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), report.Render(res))

			// Export failures are warnings; the report already printed.
			if outputDir != "" {
				if err := exportCSVs(outputDir, res); err != nil {
					fmt.Fprintln(os.Stderr, "Warning:", err)
				}
			}
			if dbDriver != "" {
				if err := loadReviewDB(dbDriver, dbDSN, res); err != nil {
					fmt.Fprintln(os.Stderr, "Warning:", err)
				}
			}
			return nil
		},
	}

	analyzeCommand.Flags().StringVar(&startStr, "start", "", "inclusive window start (e.g. \"2025-01-01 00:00:00\")")
	analyzeCommand.Flags().StringVar(&endStr, "end", "", "inclusive window end")
	analyzeCommand.Flags().StringVarP(&outputDir, "output-dir", "o", cfg.OutputDir, "directory for CSV exports (empty for none)")
	analyzeCommand.Flags().StringVar(&dbDriver, "db-driver", cfg.DBDriver, "review database driver: sqlite or postgres")
	analyzeCommand.Flags().StringVar(&dbDSN, "db-dsn", cfg.DBDSN, "review database path or connection string")
	return analyzeCommand
}

func openSource(path string) (analyze.Source, error) {
	s, err := jsonl.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func parseWindow(startStr, endStr string) (analyze.Window, error) {
	var w analyze.Window
	var err error
	if startStr != "" {
		w.Start, err = parseTime(startStr)
		if err != nil {
			return w, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if endStr != "" {
		w.End, err = parseTime(endStr)
		if err != nil {
			return w, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return w, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func exportCSVs(outputDir string, res *analyze.Result) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	timelinePath, allPath, err := export.WriteRun(outputDir, res)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Wrote", timelinePath)
	fmt.Fprintln(os.Stderr, "Wrote", allPath)
	return nil
}

// loadReviewDB pushes the full event list into a review database for
// later filtering. This is a side channel like the CSV exports.
func loadReviewDB(driver, dsn string, res *analyze.Result) error {
	if dsn == "" {
		return fmt.Errorf("--db-driver requires --db-dsn")
	}

	store, err := database.CreateStore(driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	all := res.SortedAll()
	entries := make([]database.Entry, 0, len(all))
	for _, e := range all {
		entries = append(entries, database.EntryFromFull(e))
	}

	inserted, err := store.InsertEntries(entries, func(count int) {
		fmt.Fprintf(os.Stderr, "Loaded %d events...\n", count)
	})
	if err != nil {
		return fmt.Errorf("loading review database: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Loaded %d events into %s\n", inserted, store.Path())
	return nil
}
