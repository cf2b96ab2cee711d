// Package analyze runs the triage engine: a single batch pass over one or
// more record sources, gating each record through the time window and the
// noise filter, classifying it, and folding it into the run's aggregation
// state. Sources are drained sequentially; the aggregation structures are
// not safe for concurrent writes and none happen.
package analyze

import (
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/seshat-forensics/evtxtriage/internal/classify"
	"github.com/seshat-forensics/evtxtriage/internal/device"
	"github.com/seshat-forensics/evtxtriage/internal/model"
	"github.com/seshat-forensics/evtxtriage/internal/noise"
	"github.com/seshat-forensics/evtxtriage/internal/taxonomy"
)

// ErrNoSources is returned when a run is started without any input.
var ErrNoSources = errors.New("no event log sources were provided")

// Source is an ordered, lazily-produced sequence of records from one
// input. Next returns io.EOF when the source is exhausted. Producing zero
// records for an empty source is not an error.
type Source interface {
	Name() string
	Next() (*model.Record, error)
	Close() error
}

// OpenFunc opens a record source for a path.
type OpenFunc func(path string) (Source, error)

// Window is an optional inclusive time range. A zero bound is unbounded on
// that side.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window. Boundary timestamps
// are included.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Options configures a run.
type Options struct {
	Window   Window
	Taxonomy *taxonomy.Taxonomy // nil means taxonomy.Default()
}

// SourceSummary is the per-source section of the report.
type SourceSummary struct {
	Name string

	// Err is a source-level failure: the source could not be opened or
	// died mid-read. The run continues with the next source.
	Err error

	// Processed counts records that survived every gate (window, missing
	// timestamp, noise). Skipped counts the gated-out remainder. Noise
	// is decided before the processed counter moves, for both noise
	// rules alike.
	Processed int
	Skipped   int

	// InterestCounts tallies focused-category events by identifier,
	// independent of category grouping.
	InterestCounts map[int]int
}

// Result is the terminal state of one run. Every map is mutated only while
// the run is in flight; afterwards the whole value is read-only.
type Result struct {
	Taxonomy *taxonomy.Taxonomy
	Window   Window

	CategoryCounts map[taxonomy.Category]map[int]int

	// DeviceExamples holds up to device.SampleCap example descriptions
	// per device-info identifier.
	DeviceExamples map[int][]string

	Devices device.Map

	CloudProcessCounts  map[string]int
	EmailProcessCounts  map[string]int
	EncodedCommandCount int

	Hosts StringSet
	Users StringSet

	Sources  []SourceSummary
	Timeline []model.TimelineEntry
	All      []model.FullEntry

	// failedProviders caches providers whose description rendering failed
	// once, so the expensive failure is not repeated for the rest of the
	// run.
	failedProviders map[string]bool
}

// Run drains every source in order and returns the aggregated state.
// Source-level failures are recorded in that source's summary and do not
// abort the run; supplying no sources at all is the one fatal error.
func Run(paths []string, open OpenFunc, opts Options) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoSources
	}

	tax := opts.Taxonomy
	if tax == nil {
		tax = taxonomy.Default()
	}

	res := &Result{
		Taxonomy:           tax,
		Window:             opts.Window,
		CategoryCounts:     make(map[taxonomy.Category]map[int]int),
		DeviceExamples:     make(map[int][]string),
		Devices:            make(device.Map),
		CloudProcessCounts: make(map[string]int),
		EmailProcessCounts: make(map[string]int),
		Hosts:              NewStringSet(),
		Users:              NewStringSet(),
		failedProviders:    make(map[string]bool),
	}
	for _, c := range taxonomy.Categories {
		res.CategoryCounts[c] = make(map[int]int)
	}

	for _, path := range paths {
		res.Sources = append(res.Sources, res.drainSource(path, open))
	}

	return res, nil
}

// drainSource reads one source to exhaustion (or error), applying every
// record to the run state.
func (res *Result) drainSource(path string, open OpenFunc) SourceSummary {
	sum := SourceSummary{Name: path, InterestCounts: make(map[int]int)}

	src, err := open(path)
	if err != nil {
		sum.Err = err
		return sum
	}
	defer src.Close()

	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sum.Err = err
			break
		}
		res.apply(rec, path, &sum)
	}

	return sum
}

// apply pushes one record through the gates and into the aggregation
// state. This is the only place run state is mutated.
func (res *Result) apply(rec *model.Record, sourceFile string, sum *SourceSummary) {
	// Records without a timestamp cannot be placed on any timeline and
	// are skipped entirely.
	if rec.Time.IsZero() || !res.Window.Contains(rec.Time) {
		sum.Skipped++
		return
	}

	if rec.Host != "" {
		res.Hosts.Add(rec.Host)
	}

	// The full export list keeps every in-window record, categorized or
	// not, noise included.
	res.All = append(res.All, model.FullEntry{
		Time:             rec.Time,
		EventID:          rec.EventID,
		SourceOrCategory: sourceOrCategory(rec),
		Provider:         rec.Provider,
		Host:             rec.Host,
		SourceFile:       sourceFile,
	})

	verdict := noise.Evaluate(rec)
	if verdict.User != "" {
		res.Users.Add(verdict.User)
	}
	if verdict.Drop {
		sum.Skipped++
		return
	}

	sum.Processed++

	var msg string
	if res.Taxonomy.Interesting(rec.EventID) {
		msg = res.describe(rec)
	}

	d := classify.Classify(res.Taxonomy, rec.EventID, rec.Provider)

	if d.Category != taxonomy.None {
		res.CategoryCounts[d.Category][rec.EventID]++
	}
	if d.Focused {
		sum.InterestCounts[rec.EventID]++
		res.Timeline = append(res.Timeline, model.TimelineEntry{
			Time:        rec.Time,
			EventID:     rec.EventID,
			Description: res.Taxonomy.Describe(rec.EventID),
			Provider:    rec.Provider,
		})
	}

	external := msg != "" && device.IsExternalStorage(msg, rec.Provider)
	if d.DeviceInfo && external {
		res.DeviceExamples[rec.EventID] = device.AddSample(res.DeviceExamples[rec.EventID], msg)
	}
	if d.RawUSB && external {
		res.Devices.Observe(rec.Time, msg, rec.Provider, rec.EventID)
	}

	if d.ProcessScan && msg != "" {
		res.scanProcesses(msg)
	}
}

// describe renders the record's description, tolerating failure. After one
// failure the provider is cached as permanently unformattable.
func (res *Result) describe(rec *model.Record) string {
	if rec.Describe == nil || res.failedProviders[rec.Provider] {
		return ""
	}
	msg, err := rec.Describe()
	if err != nil {
		res.failedProviders[rec.Provider] = true
		return ""
	}
	return msg
}

// scanProcesses counts cloud-storage and email-client process mentions and
// encoded-command usage in a process-creation or script-block description.
// One record may hit several counters.
func (res *Result) scanProcesses(msg string) {
	lower := strings.ToLower(msg)
	for _, proc := range res.Taxonomy.CloudProcessNames {
		if strings.Contains(lower, strings.ToLower(proc)) {
			res.CloudProcessCounts[proc]++
		}
	}
	for _, proc := range res.Taxonomy.EmailClientProcessNames {
		if strings.Contains(lower, strings.ToLower(proc)) {
			res.EmailProcessCounts[proc]++
		}
	}
	if strings.Contains(lower, "-encodedcommand") {
		res.EncodedCommandCount++
	}
}

// sourceOrCategory picks the third export column: the task category for
// Security-log records when resolvable, the literal "Security" when not,
// and the raw provider name for everything else. The input format carries
// no distinction between a task that failed to resolve and one the record
// simply does not have, so an absent task on a Security record also
// renders as "Security" rather than the provider name.
func sourceOrCategory(rec *model.Record) string {
	if strings.EqualFold(rec.Channel, "Security") {
		if rec.Task != "" {
			return rec.Task
		}
		return "Security"
	}
	if rec.Provider == "" {
		return "Unknown"
	}
	return rec.Provider
}

// SortedTimeline returns the timeline entries ordered by time descending.
// Equal timestamps keep encounter order. The accumulation buffer itself is
// never reordered.
func (res *Result) SortedTimeline() []model.TimelineEntry {
	out := make([]model.TimelineEntry, len(res.Timeline))
	copy(out, res.Timeline)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out
}

// SortedAll returns the full event list ordered by time descending.
func (res *Result) SortedAll() []model.FullEntry {
	out := make([]model.FullEntry, len(res.All))
	copy(out, res.All)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out
}

// StringSet is a case-insensitive string set that preserves the casing of
// the first insertion.
type StringSet map[string]string

// NewStringSet returns an empty set.
func NewStringSet() StringSet { return make(StringSet) }

// Add inserts a value; later insertions with different casing are merged
// into the first.
func (s StringSet) Add(v string) {
	key := strings.ToLower(v)
	if _, ok := s[key]; !ok {
		s[key] = v
	}
}

// Contains reports membership, case-insensitively.
func (s StringSet) Contains(v string) bool {
	_, ok := s[strings.ToLower(v)]
	return ok
}

// Values returns the members sorted case-insensitively.
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
