package model

import (
	"strings"
	"time"
)

// TimeFormat is the timestamp layout used in reports and CSV exports.
const TimeFormat = "2006-01-02 15:04:05"

// Fields is a flattened key/value view of a record's structured event data
// (the EventData section of the rendered record). Keys are stored
// lower-cased so lookups are case-insensitive.
type Fields map[string]string

// NewFields builds a Fields map from raw key/value pairs.
func NewFields(raw map[string]string) Fields {
	if len(raw) == 0 {
		return nil
	}
	f := make(Fields, len(raw))
	for k, v := range raw {
		f[strings.ToLower(k)] = v
	}
	return f
}

// Get returns the value for a field name, looked up case-insensitively.
// The value is returned trimmed of surrounding whitespace.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// DescribeFunc renders a record's human-readable description on demand.
// Rendering can fail when the provider's message templates cannot be
// resolved; callers must tolerate the error.
type DescribeFunc func() (string, error)

// Record is one decoded entry from a Windows event log, as produced by the
// external log reader. Records are read-only for the duration of a run.
type Record struct {
	Time     time.Time
	EventID  int
	Provider string
	Channel  string
	Host     string
	Task     string
	Fields   Fields
	Describe DescribeFunc
}

// TimelineEntry is one row of the focused-event timeline. Entries are
// appended in encounter order and sorted by time only at render time.
type TimelineEntry struct {
	Time        time.Time
	EventID     int
	Description string
	Provider    string
}

// FullEntry is one row of the full, unfiltered event list used for the
// all-events export and the optional review-database load.
type FullEntry struct {
	Time             time.Time
	EventID          int
	SourceOrCategory string
	Provider         string
	Host             string
	SourceFile       string
}
