// Package jsonl reads event records from JSONL files produced by an
// external event log dumper: one JSON object per line, already decoded
// from the binary log container. The reader is lazy; records are parsed
// one line at a time as the engine asks for them.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seshat-forensics/evtxtriage/internal/model"
)

// rawRecord is the JSON structure of one dumped event. Fields are loosely
// typed since dumper outputs vary.
type rawRecord struct {
	Time     string      `json:"time"`
	EventID  interface{} `json:"event_id"`
	Provider string      `json:"provider"`
	Channel  string      `json:"channel"`
	Host     string      `json:"host"`
	Task     string      `json:"task"`

	// Message is the rendered description when the dumper could resolve
	// it; MessageError carries the resolution failure otherwise.
	Message      string `json:"message"`
	MessageError string `json:"message_error"`

	EventData map[string]interface{} `json:"event_data"`
}

// Source streams records from one JSONL file. It implements the engine's
// Source interface.
type Source struct {
	name     string
	f        *os.File
	scanner  *bufio.Scanner
	line     int
	excluded int
}

// Open opens a JSONL event dump for reading.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	scanner := bufio.NewScanner(f)
	// Allow up to 10MB per line; script-block events can be very large.
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	return &Source{name: path, f: f, scanner: scanner}, nil
}

// Name returns the file path this source reads from.
func (s *Source) Name() string { return s.name }

// Excluded reports how many malformed lines were skipped so far.
func (s *Source) Excluded() int { return s.excluded }

// Next returns the next record, skipping blank and malformed lines, or
// io.EOF once the file is drained.
func (s *Source) Next() (*model.Record, error) {
	for s.scanner.Scan() {
		s.line++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var raw rawRecord
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			s.excluded++
			continue
		}

		return toRecord(&raw), nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", s.line+1, err)
	}
	return nil, io.EOF
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.f.Close()
}

// toRecord converts one parsed line into an engine record.
func toRecord(raw *rawRecord) *model.Record {
	fields := make(map[string]string, len(raw.EventData))
	for k, v := range raw.EventData {
		fields[k] = valueToString(v)
	}

	rec := &model.Record{
		Time:     parseTime(raw.Time),
		EventID:  valueToInt(raw.EventID),
		Provider: raw.Provider,
		Channel:  raw.Channel,
		Host:     raw.Host,
		Task:     raw.Task,
		Fields:   model.NewFields(fields),
	}

	msg, msgErr := raw.Message, raw.MessageError
	rec.Describe = func() (string, error) {
		if msgErr != "" {
			return "", errors.New(msgErr)
		}
		return msg, nil
	}

	return rec
}

// parseTime accepts RFC 3339 or the plain "2006-01-02 15:04:05" layouts.
// An unparseable or absent timestamp yields the zero time; the engine
// skips such records.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, model.TimeFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// valueToString converts loosely typed JSON values to strings.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// valueToInt converts loosely typed JSON values to int.
func valueToInt(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, _ := strconv.Atoi(val)
		return n
	default:
		return 0
	}
}
