// Package ledger implements the durable plate occupancy store: a flat
// JSON file mapping plate strings to entry records. A plate is present
// in the ledger if and only if the vehicle is currently inside the lot.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one occupancy record. On disk it is either a structured
// object or, in the legacy shape, a bare timestamp string; both decode
// to the same in-memory form and the duality never leaves this package.
type Entry struct {
	EntryTime time.Time `json:"entry_time"`
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		t, err := parseTimestamp(legacy)
		if err != nil {
			return fmt.Errorf("invalid legacy timestamp %q: %w", legacy, err)
		}
		e.EntryTime = t
		return nil
	}

	var structured struct {
		EntryTime string `json:"entry_time"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	t, err := parseTimestamp(structured.EntryTime)
	if err != nil {
		return fmt.Errorf("invalid entry_time %q: %w", structured.EntryTime, err)
	}
	e.EntryTime = t
	return nil
}

// parseTimestamp accepts RFC 3339 as well as the zone-less ISO-8601 form
// older ledger files carry ("2024-03-01T08:30:00.123456", local wall
// time, optional fractional seconds).
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EntryTime string `json:"entry_time"`
	}{EntryTime: e.EntryTime.Format(time.RFC3339)})
}

// LoadResult reports what Load found, in particular whether a corrupt
// file was discarded and the ledger recovered empty.
type LoadResult struct {
	Entries   int
	Recovered bool
}

// Ledger is the in-memory occupancy map plus its backing file. It is not
// safe for concurrent use; the gate controller serializes all access.
type Ledger struct {
	path    string
	entries map[string]Entry
	log     zerolog.Logger
}

func New(path string, log zerolog.Logger) *Ledger {
	return &Ledger{
		path:    path,
		entries: make(map[string]Entry),
		log:     log,
	}
}

// Load reads the backing file. A missing file is a clean empty ledger.
// A file that is not valid JSON is logged and discarded, and the ledger
// starts empty with Recovered set so callers can observe the data loss.
// Records are decoded one at a time, so a single unreadable record is
// dropped on its own instead of taking every valid entry with it.
func (l *Ledger) Load() (LoadResult, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.entries = make(map[string]Entry)
			return LoadResult{}, nil
		}
		return LoadResult{}, fmt.Errorf("failed to read ledger file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		l.log.Error().Err(err).Str("path", l.path).
			Msg("ledger file corrupt, starting from empty ledger")
		l.entries = make(map[string]Entry)
		return LoadResult{Recovered: true}, nil
	}

	entries := make(map[string]Entry, len(raw))
	recovered := false
	for plateNum, msg := range raw {
		var entry Entry
		if err := json.Unmarshal(msg, &entry); err != nil {
			l.log.Error().Err(err).Str("plate", plateNum).Str("path", l.path).
				Msg("dropping unreadable ledger record")
			recovered = true
			continue
		}
		entries[plateNum] = entry
	}

	l.entries = entries
	return LoadResult{Entries: len(entries), Recovered: recovered}, nil
}

// Save writes every entry back to the backing file, indented for human
// inspection, timestamps rendered as RFC 3339.
func (l *Ledger) Save() error {
	data, err := json.MarshalIndent(l.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}

func (l *Ledger) Contains(plate string) bool {
	_, ok := l.entries[plate]
	return ok
}

func (l *Ledger) Get(plate string) (Entry, bool) {
	e, ok := l.entries[plate]
	return e, ok
}

// Put records a plate as inside the lot. The timestamp is truncated to
// second precision so it round-trips through RFC 3339 unchanged.
func (l *Ledger) Put(plate string, entryTime time.Time) {
	l.entries[plate] = Entry{EntryTime: entryTime.Truncate(time.Second)}
}

func (l *Ledger) Remove(plate string) {
	delete(l.entries, plate)
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// Plates returns all parked plates in sorted order.
func (l *Ledger) Plates() []string {
	plates := make([]string, 0, len(l.entries))
	for p := range l.entries {
		plates = append(plates, p)
	}
	sort.Strings(plates)
	return plates
}
