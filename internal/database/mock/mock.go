// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// MockEncodingStore is an in-memory database.EncodingStore
type MockEncodingStore struct {
	mu sync.RWMutex
	db *database.EncodingDatabase

	SaveCalls int
	LoadCalls int

	// Error injection
	SaveError error
	LoadError error
}

// NewMockEncodingStore creates an empty (untrained) store
func NewMockEncodingStore() *MockEncodingStore {
	return &MockEncodingStore{}
}

// Set replaces the stored database without counting as a Save call
func (m *MockEncodingStore) Set(db *database.EncodingDatabase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db
}

// Saved returns the last stored database, nil if none
func (m *MockEncodingStore) Saved() *database.EncodingDatabase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// Save stores a copy of the slice headers of db
func (m *MockEncodingStore) Save(ctx context.Context, db *database.EncodingDatabase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	cp := *db
	m.db = &cp
	return nil
}

// Load returns the stored database or database.ErrNotTrained
func (m *MockEncodingStore) Load(ctx context.Context) (*database.EncodingDatabase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	if m.db == nil {
		return nil, database.ErrNotTrained
	}
	cp := *m.db
	return &cp, nil
}

// Close does nothing
func (m *MockEncodingStore) Close() error {
	return nil
}

// MockLedger is an in-memory database.Ledger
type MockLedger struct {
	mu      sync.RWMutex
	records []database.AttendanceRecord

	// RecordCalls counts every Record call, including skipped duplicates
	RecordCalls int

	// Error injection
	RecordError error
	ListError   error
}

// NewMockLedger creates an empty ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// AddRecord seeds a row directly
func (m *MockLedger) AddRecord(rec database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of all rows
func (m *MockLedger) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.AttendanceRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Record appends unless (name, date) exists
func (m *MockLedger) Record(ctx context.Context, name string, at time.Time) (database.AttendanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCalls++
	rec := database.NewAttendanceRecord(name, at)
	if m.RecordError != nil {
		return rec, false, m.RecordError
	}
	for _, r := range m.records {
		if r.Name == rec.Name && r.Date == rec.Date {
			return r, false, nil
		}
	}
	m.records = append(m.records, rec)
	return rec, true, nil
}

// List filters rows the same way the real backends do
func (m *MockLedger) List(ctx context.Context, filter database.LedgerFilter) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.AttendanceRecord
	for _, r := range m.records {
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

// Close does nothing
func (m *MockLedger) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ database.EncodingStore = (*MockEncodingStore)(nil)
	_ database.Ledger        = (*MockLedger)(nil)
)
