package analyze

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"testing"
	"time"

	"github.com/seshat-forensics/evtxtriage/internal/model"
	"github.com/seshat-forensics/evtxtriage/internal/taxonomy"
)

// fakeSource replays a fixed record slice, optionally failing mid-read.
type fakeSource struct {
	name    string
	records []*model.Record
	failAt  int // fail before yielding this index; -1 disables
	err     error
	pos     int
	closed  bool
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Next() (*model.Record, error) {
	if s.failAt >= 0 && s.pos == s.failAt {
		return nil, s.err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// openFixture builds an OpenFunc over named record sets. Unknown paths
// report fs.ErrNotExist.
func openFixture(sources map[string][]*model.Record) OpenFunc {
	return func(path string) (Source, error) {
		records, ok := sources[path]
		if !ok {
			return nil, fmt.Errorf("opening %s: %w", path, fs.ErrNotExist)
		}
		return &fakeSource{name: path, records: records, failAt: -1}, nil
	}
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func describeConst(msg string) model.DescribeFunc {
	return func() (string, error) { return msg, nil }
}

func logon(t time.Time, user, logonType string) *model.Record {
	return &model.Record{
		Time:     t,
		EventID:  4624,
		Provider: "Microsoft-Windows-Security-Auditing",
		Channel:  "Security",
		Host:     "WORKSTATION1",
		Fields: model.NewFields(map[string]string{
			"LogonType":      logonType,
			"TargetUserName": user,
		}),
	}
}

func TestRunNoSources(t *testing.T) {
	if _, err := Run(nil, openFixture(nil), Options{}); !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
}

// Scenario A: one successful interactive logon and one failed logon.
func TestRunLogonScenario(t *testing.T) {
	records := []*model.Record{
		logon(ts("2025-03-01 09:00:00"), "alice", "2"),
		{
			Time:     ts("2025-03-01 09:01:00"),
			EventID:  4625,
			Provider: "Microsoft-Windows-Security-Auditing",
			Channel:  "Security",
			Host:     "WORKSTATION1",
		},
	}

	res, err := Run([]string{"security.jsonl"},
		openFixture(map[string][]*model.Record{"security.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if !res.Users.Contains("ALICE") {
		t.Errorf("expected user alice in observed set, got %v", res.Users.Values())
	}
	want := map[int]int{4624: 1, 4625: 1}
	if got := res.CategoryCounts[taxonomy.RemoteAccess]; !reflect.DeepEqual(got, want) {
		t.Errorf("RemoteAccess counts = %v, want %v", got, want)
	}
	if len(res.Timeline) != 2 {
		t.Errorf("expected 2 timeline entries, got %d", len(res.Timeline))
	}
	if res.Sources[0].Processed != 2 {
		t.Errorf("Processed = %d, want 2", res.Sources[0].Processed)
	}
}

// Service logons are excluded from every count but remain visible as
// skipped and in the full export list.
func TestRunServiceLogonNoise(t *testing.T) {
	records := []*model.Record{
		logon(ts("2025-03-01 09:00:00"), "svcacct", "5"),
		logon(ts("2025-03-01 09:05:00"), "alice", "2"),
	}

	res, err := Run([]string{"sec.jsonl"},
		openFixture(map[string][]*model.Record{"sec.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	sum := res.Sources[0]
	if sum.Processed != 1 || sum.Skipped != 1 {
		t.Errorf("processed/skipped = %d/%d, want 1/1", sum.Processed, sum.Skipped)
	}
	if got := res.CategoryCounts[taxonomy.RemoteAccess][4624]; got != 1 {
		t.Errorf("4624 count = %d, want 1 (noise must not count)", got)
	}
	if len(res.Timeline) != 1 {
		t.Errorf("timeline entries = %d, want 1", len(res.Timeline))
	}
	if len(res.All) != 2 {
		t.Errorf("full export entries = %d, want 2 (noise stays visible)", len(res.All))
	}
	// The account name is still harvested off the dropped record.
	if !res.Users.Contains("svcacct") {
		t.Errorf("expected svcacct harvested, got %v", res.Users.Values())
	}
}

// Scenario B: two USB removal-requested records five minutes apart sharing
// a vendor/product pair correlate into one device.
func TestRunDeviceCorrelation(t *testing.T) {
	msg := `Removal requested for USBSTOR\Disk&Ven_SanDisk USB\VID_1234&PID_5678\AA11`
	records := []*model.Record{
		{
			Time:     ts("2025-03-01 10:00:00"),
			EventID:  2102,
			Provider: "Microsoft-Windows-DriverFrameworks-UserMode",
			Channel:  "System",
			Describe: describeConst(msg),
		},
		{
			Time:     ts("2025-03-01 10:05:00"),
			EventID:  2102,
			Provider: "Microsoft-Windows-DriverFrameworks-UserMode",
			Channel:  "System",
			Describe: describeConst(msg),
		},
	}

	res, err := Run([]string{"system.jsonl"},
		openFixture(map[string][]*model.Record{"system.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	devices := res.Devices.Sorted()
	if len(devices) != 1 {
		t.Fatalf("expected one device, got %d", len(devices))
	}
	d := devices[0]
	if d.Key != "VID_1234&PID_5678" {
		t.Errorf("device key = %q", d.Key)
	}
	if d.Count != 2 {
		t.Errorf("device count = %d, want 2", d.Count)
	}
	if got := d.LastSeen.Sub(d.FirstSeen); got != 5*time.Minute {
		t.Errorf("seen window = %v, want 5m", got)
	}
	if got := res.CategoryCounts[taxonomy.USB][2102]; got != 2 {
		t.Errorf("USB 2102 count = %d, want 2", got)
	}
	// 2102 is device-info eligible too, so the example list fills.
	if len(res.DeviceExamples[2102]) != 1 {
		t.Errorf("device examples = %v", res.DeviceExamples[2102])
	}
}

// Scenario C: one process-creation record mentioning a cloud client and an
// encoded command bumps both counters.
func TestRunProcessIndicators(t *testing.T) {
	records := []*model.Record{{
		Time:     ts("2025-03-01 11:00:00"),
		EventID:  4688,
		Provider: "Microsoft-Windows-Security-Auditing",
		Channel:  "Security",
		Describe: describeConst(`New Process Name: C:\Users\alice\AppData\OneDrive.exe -EncodedCommand SQBFAFgA`),
	}}

	res, err := Run([]string{"sec.jsonl"},
		openFixture(map[string][]*model.Record{"sec.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if got := res.CloudProcessCounts["OneDrive.exe"]; got != 1 {
		t.Errorf("OneDrive.exe count = %d, want 1", got)
	}
	if res.EncodedCommandCount != 1 {
		t.Errorf("encoded command count = %d, want 1", res.EncodedCommandCount)
	}
	// 4688 matches no category: full list yes, timeline no.
	if len(res.Timeline) != 0 {
		t.Errorf("timeline entries = %d, want 0", len(res.Timeline))
	}
	if len(res.All) != 1 {
		t.Errorf("full export entries = %d, want 1", len(res.All))
	}
}

// Scenario D: a missing source is noted and the rest still processes.
func TestRunMissingSource(t *testing.T) {
	res, err := Run([]string{"missing.jsonl", "ok.jsonl"},
		openFixture(map[string][]*model.Record{
			"ok.jsonl": {logon(ts("2025-03-01 09:00:00"), "alice", "2")},
		}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Sources) != 2 {
		t.Fatalf("expected 2 source summaries, got %d", len(res.Sources))
	}
	if !errors.Is(res.Sources[0].Err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error on first source, got %v", res.Sources[0].Err)
	}
	if res.Sources[1].Processed != 1 {
		t.Errorf("second source processed = %d, want 1", res.Sources[1].Processed)
	}
}

func TestRunMidReadFailure(t *testing.T) {
	records := []*model.Record{
		logon(ts("2025-03-01 09:00:00"), "alice", "2"),
		logon(ts("2025-03-01 09:01:00"), "bob", "2"),
	}
	src := &fakeSource{name: "corrupt.jsonl", records: records, failAt: 1,
		err: errors.New("corrupt chunk header")}

	res, err := Run([]string{"corrupt.jsonl"},
		func(string) (Source, error) { return src, nil }, Options{})
	if err != nil {
		t.Fatal(err)
	}

	sum := res.Sources[0]
	if sum.Err == nil {
		t.Error("expected mid-read error recorded in summary")
	}
	if sum.Processed != 1 {
		t.Errorf("processed before failure = %d, want 1", sum.Processed)
	}
	if !src.closed {
		t.Error("source not closed on error path")
	}
}

func TestRunWindowBoundaries(t *testing.T) {
	start := ts("2025-03-01 00:00:00")
	end := ts("2025-03-02 00:00:00")
	records := []*model.Record{
		logon(start, "onstart", "2"),
		logon(end, "onend", "2"),
		logon(start.Add(-time.Microsecond), "early", "2"),
		logon(end.Add(time.Microsecond), "late", "2"),
	}

	res, err := Run([]string{"sec.jsonl"},
		openFixture(map[string][]*model.Record{"sec.jsonl": records}),
		Options{Window: Window{Start: start, End: end}})
	if err != nil {
		t.Fatal(err)
	}

	if got := res.CategoryCounts[taxonomy.RemoteAccess][4624]; got != 2 {
		t.Errorf("in-window count = %d, want 2 (boundaries inclusive)", got)
	}
	if res.Users.Contains("early") || res.Users.Contains("late") {
		t.Error("out-of-window records must be excluded before any processing")
	}
	if res.Sources[0].Skipped != 2 {
		t.Errorf("skipped = %d, want 2", res.Sources[0].Skipped)
	}
}

func TestRunMissingTimestampSkipped(t *testing.T) {
	records := []*model.Record{
		{EventID: 4624, Provider: "Microsoft-Windows-Security-Auditing"},
		logon(ts("2025-03-01 09:00:00"), "alice", "2"),
	}

	res, err := Run([]string{"sec.jsonl"},
		openFixture(map[string][]*model.Record{"sec.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sources[0].Processed != 1 || res.Sources[0].Skipped != 1 {
		t.Errorf("processed/skipped = %d/%d, want 1/1",
			res.Sources[0].Processed, res.Sources[0].Skipped)
	}
	if len(res.All) != 1 {
		t.Errorf("records without timestamps must not reach the export list")
	}
}

func TestRunDescriptionFailureCachedPerProvider(t *testing.T) {
	calls := 0
	failing := func() (string, error) {
		calls++
		return "", errors.New("message template not found")
	}
	var records []*model.Record
	for i := 0; i < 3; i++ {
		records = append(records, &model.Record{
			Time:     ts("2025-03-01 09:00:00").Add(time.Duration(i) * time.Minute),
			EventID:  2102,
			Provider: "Microsoft-Windows-DriverFrameworks-UserMode",
			Channel:  "System",
			Describe: failing,
		})
	}

	res, err := Run([]string{"sys.jsonl"},
		openFixture(map[string][]*model.Record{"sys.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if calls != 1 {
		t.Errorf("describe called %d times, want 1 (provider cached after first failure)", calls)
	}
	// Without a description the records still count for their category.
	if got := res.CategoryCounts[taxonomy.USB][2102]; got != 3 {
		t.Errorf("USB 2102 count = %d, want 3", got)
	}
	if len(res.Devices) != 0 {
		t.Error("no device correlation without a description")
	}
}

func TestRunIdempotent(t *testing.T) {
	msg := `Device USBSTOR\Disk VID_ABCD&PID_0001 installed`
	records := []*model.Record{
		logon(ts("2025-03-01 09:00:00"), "alice", "2"),
		{
			Time:     ts("2025-03-01 09:10:00"),
			EventID:  20001,
			Provider: "Microsoft-Windows-DriverFrameworks-UserMode",
			Channel:  "System",
			Describe: describeConst(msg),
		},
		logon(ts("2025-03-01 09:20:00"), "svc", "5"),
	}
	open := openFixture(map[string][]*model.Record{"a.jsonl": records})

	first, err := Run([]string{"a.jsonl"}, open, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run([]string{"a.jsonl"}, open, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.CategoryCounts, second.CategoryCounts) {
		t.Error("category counts differ between identical runs")
	}
	if !reflect.DeepEqual(first.Devices, second.Devices) {
		t.Error("device maps differ between identical runs")
	}
	if !reflect.DeepEqual(first.SortedTimeline(), second.SortedTimeline()) {
		t.Error("timelines differ between identical runs")
	}
}

func TestSortedTimelineDescending(t *testing.T) {
	records := []*model.Record{
		logon(ts("2025-03-01 09:00:00"), "a", "2"),
		logon(ts("2025-03-01 11:00:00"), "b", "2"),
		logon(ts("2025-03-01 10:00:00"), "c", "2"),
	}
	res, err := Run([]string{"s.jsonl"},
		openFixture(map[string][]*model.Record{"s.jsonl": records}), Options{})
	if err != nil {
		t.Fatal(err)
	}

	sorted := res.SortedTimeline()
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Time.After(sorted[i-1].Time) {
			t.Fatalf("timeline not descending at %d", i)
		}
	}
	// Accumulation order is untouched.
	if !res.Timeline[0].Time.Equal(ts("2025-03-01 09:00:00")) {
		t.Error("accumulation buffer must keep encounter order")
	}
}

func TestSourceOrCategory(t *testing.T) {
	tests := []struct {
		name string
		rec  model.Record
		want string
	}{
		{"security with task", model.Record{Channel: "Security", Task: "Logon", Provider: "Microsoft-Windows-Security-Auditing"}, "Logon"},
		{"security without task", model.Record{Channel: "Security", Provider: "Microsoft-Windows-Security-Auditing"}, "Security"},
		{"other channel", model.Record{Channel: "System", Provider: "Microsoft-Windows-Eventlog"}, "Microsoft-Windows-Eventlog"},
		{"no provider", model.Record{Channel: "System"}, "Unknown"},
	}
	for _, tt := range tests {
		if got := sourceOrCategory(&tt.rec); got != tt.want {
			t.Errorf("%s: sourceOrCategory = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStringSetCaseFolding(t *testing.T) {
	s := NewStringSet()
	s.Add("Alice")
	s.Add("ALICE")
	s.Add("bob")

	if got := s.Values(); !reflect.DeepEqual(got, []string{"Alice", "bob"}) {
		t.Errorf("Values() = %v", got)
	}
	if !s.Contains("alice") {
		t.Error("Contains must be case-insensitive")
	}
}
