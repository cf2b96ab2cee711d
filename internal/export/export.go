// Package export writes the two analysis export files: the focused-event
// timeline and the full event log. Both are CSV, sorted by time
// descending, with RFC 4180 quoting for fields containing commas, quotes,
// or newlines.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/seshat-forensics/evtxtriage/internal/analyze"
	"github.com/seshat-forensics/evtxtriage/internal/model"
)

var timelineHeader = []string{"Time", "EventID", "Description", "Provider"}

var allEventsHeader = []string{"Time", "EventID", "Source / Task Category"}

// WriteTimeline writes the filtered timeline export. Rows are written in
// the order given; WriteRun supplies them sorted descending by time.
func WriteTimeline(path string, entries []model.TimelineEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(timelineHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Time.Format(model.TimeFormat),
			strconv.Itoa(e.EventID),
			e.Description,
			e.Provider,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteAllEvents writes the full event log export.
func WriteAllEvents(path string, entries []model.FullEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(allEventsHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Time.Format(model.TimeFormat),
			strconv.Itoa(e.EventID),
			e.SourceOrCategory,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteRun writes both exports into outputDir with timestamped names,
// overwriting silently on collision. It returns the written paths.
func WriteRun(outputDir string, res *analyze.Result) (timelinePath, allPath string, err error) {
	stamp := time.Now().Format("20060102_150405")

	timelinePath = filepath.Join(outputDir, "Filtered_Timeline_"+stamp+".csv")
	if err = WriteTimeline(timelinePath, res.SortedTimeline()); err != nil {
		return "", "", fmt.Errorf("timeline export: %w", err)
	}

	allPath = filepath.Join(outputDir, "All_Events_"+stamp+".csv")
	if err = WriteAllEvents(allPath, res.SortedAll()); err != nil {
		return "", "", fmt.Errorf("all-events export: %w", err)
	}

	return timelinePath, allPath, nil
}
