package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestEncodingFile_NotTrained(t *testing.T) {
	store := NewEncodingFile(filepath.Join(t.TempDir(), "encodings.gob"))

	_, err := store.Load(context.Background())
	if !errors.Is(err, database.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained, got %v", err)
	}
}

func TestEncodingFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "encodings.gob")
	store := NewEncodingFile(path)

	db := &database.EncodingDatabase{Model: "dlib_face_recognition_resnet_model_v1", TrainedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	db.Add("alice", "dataset/alice/0.jpg", []float32{0.1, 0.2, 0.3})
	db.Add("alice", "dataset/alice/1.jpg", []float32{0.1, 0.2, 0.31})
	db.Add("bob", "dataset/bob/0.jpg", []float32{0.9, 0.8, 0.7})

	if err := store.Save(ctx, db); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", got.Len())
	}
	for i := range db.Names {
		if got.Names[i] != db.Names[i] {
			t.Errorf("entry %d: expected name %s, got %s", i, db.Names[i], got.Names[i])
		}
		for j := range db.Encodings[i] {
			if got.Encodings[i][j] != db.Encodings[i][j] {
				t.Errorf("entry %d: embedding differs at %d", i, j)
			}
		}
	}
	if got.Dim != 3 || got.Model != db.Model || !got.TrainedAt.Equal(db.TrainedAt) {
		t.Errorf("metadata not preserved: %+v", got)
	}
}

func TestEncodingFile_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewEncodingFile(filepath.Join(t.TempDir(), "encodings.gob"))

	first := &database.EncodingDatabase{}
	first.Add("alice", "a.jpg", []float32{1, 2})
	first.Add("bob", "b.jpg", []float32{3, 4})
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	second := &database.EncodingDatabase{}
	second.Add("carol", "c.jpg", []float32{5, 6})
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 1 || got.Names[0] != "carol" {
		t.Errorf("expected only carol after replace, got %v", got.Names)
	}

	entries, _ := os.ReadDir(filepath.Dir(store.Path()))
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestEncodingFile_Empty(t *testing.T) {
	ctx := context.Background()
	store := NewEncodingFile(filepath.Join(t.TempDir(), "encodings.gob"))

	if err := store.Save(ctx, &database.EncodingDatabase{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("expected empty database, got %d entries", got.Len())
	}
}

func TestEncodingFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encodings.gob")
	if err := os.WriteFile(path, []byte("not gob"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewEncodingFile(path).Load(context.Background())
	if err == nil || errors.Is(err, database.ErrNotTrained) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestCSVLedger_RecordIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	ledger := NewCSVLedger(path)

	morning := time.Date(2024, 3, 1, 9, 15, 2, 0, time.Local)
	rec, added, err := ledger.Record(ctx, "alice", morning)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !added {
		t.Error("expected first record to be added")
	}
	if rec.Date != "2024-03-01" || rec.Time != "09:15:02" {
		t.Errorf("unexpected record: %+v", rec)
	}

	rec, added, err = ledger.Record(ctx, "alice", morning.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Record again: %v", err)
	}
	if added {
		t.Error("expected second record on the same date to be skipped")
	}
	if rec.Time != "09:15:02" {
		t.Errorf("expected existing row to be returned, got %+v", rec)
	}

	if _, added, _ = ledger.Record(ctx, "alice", morning.AddDate(0, 0, 1)); !added {
		t.Error("expected a record on the next day to be added")
	}
	if _, added, _ = ledger.Record(ctx, "bob", morning); !added {
		t.Error("expected a record for another person to be added")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Name,Date,Time\nalice,2024-03-01,09:15:02\nalice,2024-03-02,09:15:02\nbob,2024-03-01,09:15:02\n"
	if string(data) != want {
		t.Errorf("unexpected file contents:\n%s", data)
	}
}

func TestCSVLedger_InitWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	ledger := NewCSVLedger(path)

	if err := ledger.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Name,Date,Time\n" {
		t.Errorf("expected header only, got %q", data)
	}

	// Init keeps existing rows.
	if _, _, err := ledger.Record(context.Background(), "alice", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Init(); err != nil {
		t.Fatal(err)
	}
	rows, _ := ledger.List(context.Background(), database.LedgerFilter{})
	if len(rows) != 1 {
		t.Errorf("expected 1 row after second Init, got %d", len(rows))
	}
}

func TestCSVLedger_List(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	content := "Name,Date,Time\nJiří Novák,2024-03-01,08:00:00\nalice,2024-03-01,09:00:00\nalice,2024-03-02,09:30:00\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	ledger := NewCSVLedger(path)

	tests := []struct {
		name   string
		filter database.LedgerFilter
		want   int
	}{
		{"all", database.LedgerFilter{}, 3},
		{"by date", database.LedgerFilter{Date: "2024-03-01"}, 2},
		{"by person", database.LedgerFilter{Person: "alice"}, 2},
		{"by normalized person", database.LedgerFilter{Person: "jiri-novak"}, 1},
		{"by both", database.LedgerFilter{Date: "2024-03-02", Person: "alice"}, 1},
		{"no match", database.LedgerFilter{Person: "bob"}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := ledger.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(rows) != tc.want {
				t.Errorf("expected %d rows, got %d", tc.want, len(rows))
			}
		})
	}
}

func TestCSVLedger_ListMissingFile(t *testing.T) {
	ledger := NewCSVLedger(filepath.Join(t.TempDir(), "attendance.csv"))
	rows, err := ledger.List(context.Background(), database.LedgerFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	records := []database.AttendanceRecord{{Name: "Smith, J", Date: "2024-03-01", Time: "09:00:00"}}
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(buf.String(), `"Smith, J",2024-03-01,09:00:00`) {
		t.Errorf("expected quoted name, got %q", buf.String())
	}
}
