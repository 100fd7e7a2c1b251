// Package activity reads the per-date agent activity logs and the task board
// and derives a per-agent latest / last-completed view.
package activity

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Entry is one activity-log record. Story, Tasks and Tags are passed
// through as written since external writers disagree on their shape.
type Entry struct {
	TS      string          `json:"ts"`
	Agent   string          `json:"agent"`
	Message string          `json:"message"`
	Story   json.RawMessage `json:"story,omitempty"`
	Tasks   json.RawMessage `json:"tasks,omitempty"`
	Tags    json.RawMessage `json:"tags,omitempty"`
}

// UnmarshalJSON accepts any JSON object. Non-string ts, agent or message
// read as empty.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errNotObject
	}
	*e = Entry{
		TS:      rawString(raw["ts"]),
		Agent:   rawString(raw["agent"]),
		Message: rawString(raw["message"]),
		Story:   rawValue(raw["story"]),
		Tasks:   rawValue(raw["tasks"]),
		Tags:    rawValue(raw["tags"]),
	}
	return nil
}

var errNotObject = errors.New("not a JSON object")

func rawString(v json.RawMessage) string {
	var s string
	if len(v) == 0 || json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// rawValue drops explicit nulls so they are omitted on output.
func rawValue(v json.RawMessage) json.RawMessage {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	return v
}

// Log reads <dir>/<YYYY-MM-DD>.jsonl files.
type Log struct {
	dir string
}

// NewLog creates a reader for the activity directory.
func NewLog(dir string) *Log {
	return &Log{dir: dir}
}

// ValidDate reports whether s is a YYYY-MM-DD date key.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// Today returns the UTC date key for now.
func Today(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

// Yesterday returns the UTC date key for the day before now.
func Yesterday(now time.Time) string {
	return now.UTC().AddDate(0, 0, -1).Format(dateLayout)
}

// DefaultDates is today and yesterday in UTC.
func DefaultDates(now time.Time) []string {
	return []string{Today(now), Yesterday(now)}
}

// ForDate returns the entries of one date file in file order. A missing
// file yields no entries; unparsable lines are skipped.
func (l *Log) ForDate(date string) ([]Entry, error) {
	if !ValidDate(date) {
		return nil, fmt.Errorf("invalid activity date %q", date)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, date+".jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	var out []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || bytes.Equal(line, []byte("null")) {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ForDates concatenates the entries of each date in the given order.
func (l *Log) ForDates(dates []string) ([]Entry, error) {
	var all []Entry
	for _, d := range dates {
		entries, err := l.ForDate(d)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Tail returns up to limit entries across dates, newest first.
// Entries with unparsable timestamps sort as the oldest.
func (l *Log) Tail(dates []string, limit int) ([]Entry, error) {
	entries, err := l.ForDates(dates)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return tsMillis(entries[i].TS) > tsMillis(entries[j].TS)
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// tsMillis parses an ISO-8601 timestamp into epoch milliseconds, 0 when
// it cannot be parsed.
func tsMillis(ts string) int64 {
	if ts == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000", "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
