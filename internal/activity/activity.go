// Package activity keeps an append-only CSV log of the changes made from
// this machine.
package activity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Action names a logged change.
type Action string

const (
	ActionLogin    Action = "login"
	ActionLogout   Action = "logout"
	ActionRegister Action = "register"
	ActionAdd      Action = "add"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionImport   Action = "import"
)

// Entry is one row in the activity log.
type Entry struct {
	Timestamp time.Time
	User      string
	Action    Action
	ExpenseID int64
	Details   string
}

// FileName is the log's name inside the config directory.
const FileName = "activity.csv"

// Header is the CSV header for activity.csv.
var Header = []string{"timestamp", "user", "action", "expense_id", "details"}

const (
	numFields    = 5
	colTimestamp = 0
	colUser      = 1
	colAction    = 2
	colExpenseID = 3
	colDetails   = 4
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colUser] = e.User
	row[colAction] = string(e.Action)
	if e.ExpenseID != 0 {
		row[colExpenseID] = strconv.FormatInt(e.ExpenseID, 10)
	}
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	var id int64
	if record[colExpenseID] != "" {
		id, err = strconv.ParseInt(record[colExpenseID], 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing expense id %q: %w", record[colExpenseID], err)
		}
	}

	return Entry{
		Timestamp: ts,
		User:      record[colUser],
		Action:    Action(record[colAction]),
		ExpenseID: id,
		Details:   record[colDetails],
	}, nil
}

// Log appends to and reads activity.csv in a directory.
type Log struct {
	dir string
	now func() time.Time
}

// New returns the log stored in dir.
func New(dir string) *Log {
	return &Log{dir: dir, now: time.Now}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return filepath.Join(l.dir, FileName)
}

// Record appends a single entry stamped with the current time.
func (l *Log) Record(user string, action Action, expenseID int64, details string) error {
	return l.Append([]Entry{{
		Timestamp: l.now(),
		User:      user,
		Action:    action,
		ExpenseID: expenseID,
		Details:   details,
	}})
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries []Entry) error {
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("creating activity dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(l.Path()); errors.Is(err, os.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries. A missing file yields no entries.
func (l *Log) Read() ([]Entry, error) {
	f, err := os.Open(l.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading activity CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
