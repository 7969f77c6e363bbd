package database

import (
	"time"
)

// Date and time layouts used by every ledger backend.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// EncodingDatabase is the trained set of face embeddings. Encodings, Names and
// Sources are parallel slices: entry i is the embedding of Names[i] computed
// from the image at Sources[i].
type EncodingDatabase struct {
	Encodings [][]float32
	Names     []string
	Sources   []string
	Model     string // extractor model that produced the embeddings
	Dim       int
	TrainedAt time.Time
}

// Len returns the number of stored embeddings.
func (db *EncodingDatabase) Len() int {
	if db == nil {
		return 0
	}
	return len(db.Encodings)
}

// Add appends one (embedding, person) pair.
func (db *EncodingDatabase) Add(name, source string, embedding []float32) {
	db.Encodings = append(db.Encodings, embedding)
	db.Names = append(db.Names, name)
	db.Sources = append(db.Sources, source)
	if db.Dim == 0 {
		db.Dim = len(embedding)
	}
}

// People returns the distinct person names in stored order.
func (db *EncodingDatabase) People() []string {
	if db == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(db.Names))
	var people []string
	for _, name := range db.Names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		people = append(people, name)
	}
	return people
}

// CountByPerson returns how many embeddings each person has.
func (db *EncodingDatabase) CountByPerson() map[string]int {
	counts := make(map[string]int)
	if db == nil {
		return counts
	}
	for _, name := range db.Names {
		counts[name]++
	}
	return counts
}

// AttendanceRecord is one ledger row. At most one exists per (Name, Date).
type AttendanceRecord struct {
	Name string `json:"name"`
	Date string `json:"date"` // YYYY-MM-DD, local time
	Time string `json:"time"` // HH:MM:SS, local time
}

// NewAttendanceRecord formats a record for name at the given instant.
func NewAttendanceRecord(name string, at time.Time) AttendanceRecord {
	return AttendanceRecord{
		Name: name,
		Date: at.Format(DateLayout),
		Time: at.Format(TimeLayout),
	}
}

// LedgerFilter narrows List results. Empty fields match everything.
type LedgerFilter struct {
	Date   string
	Person string
}
