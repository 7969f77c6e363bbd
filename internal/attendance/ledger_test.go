package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

func TestAttendance_Filters(t *testing.T) {
	ledger := mock.NewMockLedger()
	ledger.AddRecord(database.AttendanceRecord{Name: "alice", Date: "2024-05-01", Time: "08:00:00"})
	ledger.AddRecord(database.AttendanceRecord{Name: "bob", Date: "2024-05-01", Time: "08:05:00"})
	ledger.AddRecord(database.AttendanceRecord{Name: "alice", Date: "2024-05-02", Time: "09:00:00"})
	svc := NewService(Deps{Ledger: ledger})

	tests := []struct {
		name    string
		filter  database.LedgerFilter
		want    int
		wantErr bool
	}{
		{name: "all", want: 3},
		{name: "by date", filter: database.LedgerFilter{Date: "2024-05-01"}, want: 2},
		{name: "by person", filter: database.LedgerFilter{Person: "Alice"}, want: 2},
		{name: "by both", filter: database.LedgerFilter{Date: "2024-05-02", Person: "alice"}, want: 1},
		{name: "no match", filter: database.LedgerFilter{Date: "2023-01-01"}, want: 0},
		{name: "bad date", filter: database.LedgerFilter{Date: "05/01/2024"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Attendance(context.Background(), tt.filter)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Attendance: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d rows, got %d", tt.want, len(got))
			}
		})
	}
}

func TestAttendance_ListError(t *testing.T) {
	ledger := mock.NewMockLedger()
	ledger.ListError = errors.New("connection refused")
	svc := NewService(Deps{Ledger: ledger})

	if _, err := svc.Attendance(context.Background(), database.LedgerFilter{}); !errors.Is(err, ledger.ListError) {
		t.Errorf("expected list error, got %v", err)
	}
}

func TestPeople_MergesDatasetAndEncodings(t *testing.T) {
	store := imagestore.New(t.TempDir())
	seed(t, store, "bob", "b0", "b1", "b2")
	seed(t, store, "alice", "a0")

	encodings := mock.NewMockEncodingStore()
	db := &database.EncodingDatabase{}
	db.Add("alice", "x", []float32{1})
	db.Add("carol", "y", []float32{2})
	db.Add("carol", "z", []float32{3})
	encodings.Set(db)

	svc := NewService(Deps{Store: store, Encodings: encodings})
	got, err := svc.People(context.Background())
	if err != nil {
		t.Fatalf("People: %v", err)
	}
	want := []PersonSummary{
		{Name: "alice", Images: 1, Encodings: 1},
		{Name: "bob", Images: 3},
		{Name: "carol", Encodings: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d people, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("person %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestPeople_Untrained(t *testing.T) {
	store := imagestore.New(t.TempDir())
	seed(t, store, "alice", "a0")
	svc := NewService(Deps{Store: store, Encodings: mock.NewMockEncodingStore()})

	got, err := svc.People(context.Background())
	if err != nil {
		t.Fatalf("People: %v", err)
	}
	if len(got) != 1 || got[0].Encodings != 0 {
		t.Errorf("unexpected summary %+v", got)
	}
}

func TestStatus(t *testing.T) {
	encodings := mock.NewMockEncodingStore()
	svc := NewService(Deps{Encodings: encodings})

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Trained {
		t.Error("expected untrained status")
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db := trainedDB()
	db.TrainedAt = at
	encodings.Set(db)
	st, err = svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Trained || st.Entries != 2 || st.People != 2 || st.Dim != 2 || st.Model != "fake-model" || !st.TrainedAt.Equal(at) {
		t.Errorf("unexpected status %+v", st)
	}

	encodings.LoadError = errors.New("corrupt")
	if _, err := svc.Status(context.Background()); !errors.Is(err, encodings.LoadError) {
		t.Errorf("expected load error, got %v", err)
	}
}
