package local

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var ledgerHeader = []string{"Name", "Date", "Time"}

// CSVLedger is the attendance ledger kept as a CSV file with the header
// Name,Date,Time. Every append rewrites the whole file.
type CSVLedger struct {
	path string
}

// NewCSVLedger returns a ledger backed by the CSV file at path. The file is
// created with a header on first use.
func NewCSVLedger(path string) *CSVLedger {
	return &CSVLedger{path: path}
}

// Path returns the backing file path.
func (l *CSVLedger) Path() string {
	return l.path
}

// Init writes a header-only file if none exists.
func (l *CSVLedger) Init() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking ledger file: %w", err)
	}
	return l.write(nil)
}

// Record appends a row for name unless one already exists for the date of at.
func (l *CSVLedger) Record(ctx context.Context, name string, at time.Time) (database.AttendanceRecord, bool, error) {
	rec := database.NewAttendanceRecord(name, at)
	if err := ctx.Err(); err != nil {
		return rec, false, err
	}
	if err := l.Init(); err != nil {
		return rec, false, err
	}

	rows, err := l.read()
	if err != nil {
		return rec, false, err
	}
	for _, r := range rows {
		if r.Name == rec.Name && r.Date == rec.Date {
			return r, false, nil
		}
	}

	if err := l.write(append(rows, rec)); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// List returns rows matching filter in file order. A missing file is an
// empty ledger.
func (l *CSVLedger) List(ctx context.Context, filter database.LedgerFilter) ([]database.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := l.read()
	if err != nil {
		return nil, err
	}

	var out []database.AttendanceRecord
	for _, r := range rows {
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		if filter.Person != "" && !facematch.SamePerson(r.Name, filter.Person) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Close is a no-op.
func (l *CSVLedger) Close() error {
	return nil
}

func (l *CSVLedger) read() ([]database.AttendanceRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []database.AttendanceRecord
	first := true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ledger %s: %w", l.path, err)
		}
		if first {
			first = false
			if isHeader(fields) {
				continue
			}
		}
		if len(fields) < 3 {
			continue
		}
		rows = append(rows, database.AttendanceRecord{Name: fields[0], Date: fields[1], Time: fields[2]})
	}
	return rows, nil
}

func (l *CSVLedger) write(rows []database.AttendanceRecord) error {
	return writeAtomic(l.path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("writing ledger header: %w", err)
		}
		for _, r := range rows {
			if err := w.Write([]string{r.Name, r.Date, r.Time}); err != nil {
				return fmt.Errorf("writing ledger row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("flushing ledger: %w", err)
		}
		return nil
	})
}

func isHeader(fields []string) bool {
	return len(fields) >= 3 && fields[0] == ledgerHeader[0] && fields[1] == ledgerHeader[1] && fields[2] == ledgerHeader[2]
}

// WriteCSV writes records with the ledger header to w.
func WriteCSV(w io.Writer, records []database.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Name, r.Date, r.Time}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
