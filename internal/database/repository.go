package database

import (
	"context"
	"errors"
	"time"
)

// ErrNotTrained is returned by EncodingStore.Load when no training run has
// been persisted yet.
var ErrNotTrained = errors.New("face encodings not found: train the model first")

// EncodingStore persists the encoding database as a whole.
type EncodingStore interface {
	// Save replaces any previously stored encodings with db
	Save(ctx context.Context, db *EncodingDatabase) error
	// Load returns the stored encodings or ErrNotTrained
	Load(ctx context.Context) (*EncodingDatabase, error)
	Close() error
}

// Ledger is the append-only attendance record keyed by (person, date).
type Ledger interface {
	// Record appends a row for name at the given time unless one already
	// exists for that name and date. The returned bool reports whether a
	// row was appended.
	Record(ctx context.Context, name string, at time.Time) (AttendanceRecord, bool, error)
	// List returns rows matching the filter in insertion order
	List(ctx context.Context, filter LedgerFilter) ([]AttendanceRecord, error)
	Close() error
}
