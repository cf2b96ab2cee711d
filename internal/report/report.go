// Package report turns the final state of an analysis run into the
// human-readable triage report. Rendering is a pure function of the run
// state; sections with no data print a placeholder line instead of
// failing.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seshat-forensics/evtxtriage/internal/analyze"
	"github.com/seshat-forensics/evtxtriage/internal/model"
	"github.com/seshat-forensics/evtxtriage/internal/taxonomy"
)

const divider = "----------------------------------------------------------------------"

// Render produces the full report text.
func Render(res *analyze.Result) string {
	var sb strings.Builder

	renderSystemInformation(&sb, res)
	renderSourceSummaries(&sb, res)
	renderCategorySummary(&sb, res)
	renderDeviceOverview(&sb, res)
	renderProcessIndicators(&sb, res)
	renderTimeline(&sb, res)

	return sb.String()
}

func renderSystemInformation(sb *strings.Builder, res *analyze.Result) {
	fmt.Fprintln(sb, divider)
	fmt.Fprintln(sb, " System Information")
	fmt.Fprintln(sb, divider)
	fmt.Fprintln(sb)

	hosts := res.Hosts.Values()
	fmt.Fprintf(sb, "  [ Computers Identified (%d) ]\n", len(hosts))
	if len(hosts) == 0 {
		fmt.Fprintln(sb, "   - None identified")
	}
	for _, h := range hosts {
		fmt.Fprintf(sb, "   - %s\n", h)
	}
	fmt.Fprintln(sb)

	users := res.Users.Values()
	fmt.Fprintf(sb, "  [ User Accounts Observed (via Logon Events) (%d) ]\n", len(users))
	if len(users) == 0 {
		fmt.Fprintln(sb, "   - None identified (or no 4624 events found)")
	}
	for _, u := range users {
		fmt.Fprintf(sb, "   - %s\n", u)
	}
	fmt.Fprintln(sb)
	fmt.Fprintln(sb)
}

func renderSourceSummaries(sb *strings.Builder, res *analyze.Result) {
	banner(sb, "— INDIVIDUAL LOG FILE SUMMARY —")

	for _, sum := range res.Sources {
		if sum.Err != nil && sum.Processed == 0 && sum.Skipped == 0 {
			if errors.Is(sum.Err, fs.ErrNotExist) {
				fmt.Fprintf(sb, "[!] File not found: %s\n\n", sum.Name)
			} else {
				fmt.Fprintf(sb, "[ ERROR ] %s: %v\n\n", sum.Name, sum.Err)
			}
			continue
		}

		fmt.Fprintln(sb, divider)
		fmt.Fprintf(sb, " File: %s\n", strings.ToUpper(filepath.Base(sum.Name)))
		fmt.Fprintln(sb, divider)

		if sum.Err != nil {
			fmt.Fprintf(sb, "[ ERROR ] %s: %v\n", sum.Name, sum.Err)
		}

		fmt.Fprintln(sb, "[ File Summary ]")
		fmt.Fprintf(sb, "  Total processed events: %d\n", sum.Processed)
		if sum.Skipped > 0 {
			fmt.Fprintf(sb, "  Skipped (noise/filtered): %d\n", sum.Skipped)
		}
		fmt.Fprintln(sb)

		if len(sum.InterestCounts) > 0 {
			fmt.Fprintln(sb, "[ Events of Forensic Interest ]")
			for _, kv := range sortCounts(sum.InterestCounts) {
				appendEventLine(sb, kv.id, kv.count, res.Taxonomy.Describe(kv.id))
			}
		}
		fmt.Fprintln(sb)
	}
}

func renderCategorySummary(sb *strings.Builder, res *analyze.Result) {
	banner(sb, "— CATEGORY SUMMARY —")

	for _, cat := range taxonomy.Categories {
		fmt.Fprintln(sb, divider)
		fmt.Fprintf(sb, "[ %s ]\n", cat)

		stats := res.CategoryCounts[cat]
		if len(stats) == 0 {
			fmt.Fprintln(sb, "  No matching events found in loaded logs.")
		}
		for _, kv := range sortCounts(stats) {
			appendEventLine(sb, kv.id, kv.count, res.Taxonomy.Describe(kv.id))
			for _, example := range res.DeviceExamples[kv.id] {
				fmt.Fprintf(sb, "    e.g., %s\n", example)
			}
		}
		fmt.Fprintln(sb)
		fmt.Fprintln(sb, divider)
		fmt.Fprintln(sb)
	}
}

func renderDeviceOverview(sb *strings.Builder, res *analyze.Result) {
	fmt.Fprintln(sb, "[ USB Device Overview (Removable Storage Only) ]")
	devices := res.Devices.Sorted()
	if len(devices) == 0 {
		fmt.Fprintln(sb, "  No external removable storage devices identified.")
	}
	for _, d := range devices {
		fmt.Fprintf(sb, "  Device: %s\n", d.Key)
		fmt.Fprintf(sb, "    Events: %d\n", d.Count)
		if !d.FirstSeen.IsZero() && !d.LastSeen.IsZero() {
			fmt.Fprintf(sb, "    First Seen: %s  |  Last Seen: %s\n",
				d.FirstSeen.Format(model.TimeFormat), d.LastSeen.Format(model.TimeFormat))
		}
		fmt.Fprintln(sb)
	}
	fmt.Fprintln(sb)
}

func renderProcessIndicators(sb *strings.Builder, res *analyze.Result) {
	if len(res.CloudProcessCounts) == 0 && len(res.EmailProcessCounts) == 0 &&
		res.EncodedCommandCount == 0 {
		return
	}

	fmt.Fprintln(sb, "[ PROCESS-BASED EXFILTRATION INDICATORS (4688 / 4104) ]")
	for _, kv := range sortNamedCounts(res.CloudProcessCounts) {
		fmt.Fprintf(sb, "    %-25s %d process creation events\n", kv.name, kv.count)
	}
	for _, kv := range sortNamedCounts(res.EmailProcessCounts) {
		fmt.Fprintf(sb, "    %-25s %d process creation events\n", kv.name, kv.count)
	}
	if res.EncodedCommandCount > 0 {
		fmt.Fprintf(sb, "\n  PowerShell -EncodedCommand usage: %d events.\n", res.EncodedCommandCount)
	}
	fmt.Fprintln(sb)
}

func renderTimeline(sb *strings.Builder, res *analyze.Result) {
	fmt.Fprintln(sb)
	banner(sb, "— TIMELINE —")

	entries := res.SortedTimeline()
	if len(entries) == 0 {
		fmt.Fprintln(sb, "  No timeline-relevant events found in loaded logs.")
	}
	for _, e := range entries {
		desc := ""
		if strings.TrimSpace(e.Description) != "" {
			desc = fmt.Sprintf(" (%s)", e.Description)
		}
		fmt.Fprintf(sb, "  %s  -  ID %d%s\n", e.Time.Format(model.TimeFormat), e.EventID, desc)
	}
	fmt.Fprintln(sb)
}

func banner(sb *strings.Builder, title string) {
	const edge = "================================================================"
	fmt.Fprintf(sb, "%s%s\n", strings.Repeat(" ", 40), edge)
	fmt.Fprintf(sb, "%s%s  %s  %s\n", strings.Repeat(" ", 45),
		strings.Repeat(`\/`, 16), title, strings.Repeat(`/\`, 16))
	fmt.Fprintf(sb, "%s%s\n", strings.Repeat(" ", 40), edge)
	fmt.Fprintln(sb)
}

// appendEventLine prints a dotted identifier/count line:
//
//	ID 4624 ..................... 12 events   (Successful logon)
func appendEventLine(sb *strings.Builder, id, count int, description string) {
	const dottedFieldTargetWidth = 32

	idPart := fmt.Sprintf("  ID %d ", id)
	dots := dottedFieldTargetWidth - len(idPart)
	if dots < 3 {
		dots = 3
	}
	fmt.Fprintf(sb, "%s%s %d events", idPart, strings.Repeat(".", dots), count)
	if description != "" && description != "Unknown/other" {
		fmt.Fprintf(sb, "   (%s)", description)
	}
	fmt.Fprintln(sb)
}

type idCount struct {
	id    int
	count int
}

// sortCounts orders identifier counts by count descending, then by id so
// that equal counts render deterministically.
func sortCounts(stats map[int]int) []idCount {
	out := make([]idCount, 0, len(stats))
	for id, c := range stats {
		out = append(out, idCount{id, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].id < out[j].id
	})
	return out
}

type nameCount struct {
	name  string
	count int
}

func sortNamedCounts(stats map[string]int) []nameCount {
	out := make([]nameCount, 0, len(stats))
	for n, c := range stats {
		out = append(out, nameCount{n, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}
