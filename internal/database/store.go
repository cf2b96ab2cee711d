package database

import "github.com/seshat-forensics/evtxtriage/internal/model"

// Entry is one row of the triage_events review table: a processed event
// plus the analysis context it was seen in.
type Entry struct {
	Datetime    string
	EventID     int
	Provider    string
	Category    string
	Host        string
	SourceFile  string
	Description string
}

// EntryFromFull builds a review row from a full-export event.
func EntryFromFull(e model.FullEntry) Entry {
	return Entry{
		Datetime:   e.Time.Format(model.TimeFormat),
		EventID:    e.EventID,
		Provider:   e.Provider,
		Category:   e.SourceOrCategory,
		Host:       e.Host,
		SourceFile: e.SourceFile,
	}
}

// Store is the interface to a review database. Loading events into a
// store is a best-effort export side channel; the analysis itself never
// reads back from it.
type Store interface {
	// InsertEntries loads a batch of rows inside a single transaction.
	// The onProgress callback, if non-nil, is called every 10,000 rows.
	InsertEntries(entries []Entry, onProgress func(int)) (int, error)

	// CountEntries returns the number of rows currently loaded.
	CountEntries() (int64, error)

	Close() error
	Path() string
}
