package facematch

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// twoPeople returns a database where a live vector at the origin is within
// 0.6 of both alice (0.5 away) and bob (0.3 away), alice first.
func twoPeople() *database.EncodingDatabase {
	db := &database.EncodingDatabase{}
	db.Add("alice", "dataset/alice/0.jpg", []float32{0.5, 0, 0})
	db.Add("bob", "dataset/bob/0.jpg", []float32{0, 0.3, 0})
	db.Add("carol", "dataset/carol/0.jpg", []float32{3, 3, 3})
	return db
}

func TestNewMatcher_Validation(t *testing.T) {
	tests := []struct {
		name      string
		tolerance float64
		tieBreak  TieBreak
		metric    Metric
		wantErr   bool
	}{
		{"defaults", 0.6, TieBreakFirst, MetricEuclidean, false},
		{"closest cosine", 0.5, TieBreakClosest, MetricCosine, false},
		{"zero tolerance", 0, TieBreakFirst, MetricEuclidean, true},
		{"bad tie-break", 0.6, "random", MetricEuclidean, true},
		{"bad metric", 0.6, TieBreakFirst, "manhattan", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMatcher(tc.tolerance, tc.tieBreak, tc.metric)
			if (err != nil) != tc.wantErr {
				t.Errorf("NewMatcher error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMatcher_Compare(t *testing.T) {
	m, _ := NewMatcher(0.6, TieBreakFirst, MetricEuclidean)
	got := m.Compare(twoPeople(), []float32{0, 0, 0})
	want := []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMatcher_ToleranceIsInclusive(t *testing.T) {
	db := &database.EncodingDatabase{}
	db.Add("alice", "a.jpg", []float32{0.5, 0})
	m, _ := NewMatcher(0.5, TieBreakFirst, MetricEuclidean)

	res := m.Match(db, []float32{0, 0})
	if !res.Known || res.Name != "alice" {
		t.Errorf("expected distance equal to tolerance to match, got %+v", res)
	}
}

func TestMatcher_TieBreak(t *testing.T) {
	tests := []struct {
		policy   TieBreak
		wantName string
		wantIdx  int
	}{
		{TieBreakFirst, "alice", 0},
		{TieBreakClosest, "bob", 1},
	}
	for _, tc := range tests {
		t.Run(string(tc.policy), func(t *testing.T) {
			m, _ := NewMatcher(0.6, tc.policy, MetricEuclidean)
			res := m.Match(twoPeople(), []float32{0, 0, 0})
			if !res.Known || res.Name != tc.wantName || res.Index != tc.wantIdx {
				t.Errorf("got %+v, want %s at %d", res, tc.wantName, tc.wantIdx)
			}
		})
	}
}

func TestMatcher_Unknown(t *testing.T) {
	m, _ := NewMatcher(0.6, TieBreakFirst, MetricEuclidean)

	tests := []struct {
		name string
		db   *database.EncodingDatabase
		live []float32
	}{
		{"nothing close", twoPeople(), []float32{-5, -5, -5}},
		{"empty database", &database.EncodingDatabase{}, []float32{0, 0, 0}},
		{"nil database", nil, []float32{0, 0, 0}},
		{"empty embedding", twoPeople(), nil},
		{"dimension mismatch", twoPeople(), []float32{0, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := m.Match(tc.db, tc.live)
			if res.Known || res.Name != UnknownName || res.Index != -1 {
				t.Errorf("expected unknown, got %+v", res)
			}
		})
	}
}

func TestMatcher_Cosine(t *testing.T) {
	db := &database.EncodingDatabase{}
	db.Add("alice", "a.jpg", []float32{1, 0})
	db.Add("bob", "b.jpg", []float32{0, 1})
	m, _ := NewMatcher(DefaultTolerance(MetricCosine), TieBreakClosest, MetricCosine)

	res := m.Match(db, []float32{0.1, 2})
	if res.Name != "bob" {
		t.Errorf("expected bob, got %+v", res)
	}
}

func TestMatcher_ClosestUsesIndex(t *testing.T) {
	db := twoPeople()
	idx := database.NewHNSWIndex(string(MetricEuclidean))
	if err := idx.BuildFromDatabase(db); err != nil {
		t.Fatalf("BuildFromDatabase: %v", err)
	}

	m, _ := NewMatcher(0.6, TieBreakClosest, MetricEuclidean)
	m.UseIndex(idx)

	res := m.Match(db, []float32{0, 0.25, 0})
	if !res.Known || res.Name != "bob" {
		t.Errorf("expected bob via index, got %+v", res)
	}

	res = m.Match(db, []float32{-5, -5, -5})
	if res.Known {
		t.Errorf("expected tolerance to apply to indexed results, got %+v", res)
	}
}

func TestMatcher_OtherDimensionIsUnknown(t *testing.T) {
	db := twoPeople()
	idx, err := database.EnsureIndex(db, string(MetricEuclidean), "")
	if err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	tests := []struct {
		name     string
		tieBreak TieBreak
		index    bool
	}{
		{"first", TieBreakFirst, false},
		{"closest linear", TieBreakClosest, false},
		{"closest indexed", TieBreakClosest, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := NewMatcher(0.6, tc.tieBreak, MetricEuclidean)
			if tc.index {
				m.UseIndex(idx)
			}
			for _, live := range [][]float32{{0, 0}, {0, 0.3, 0, 0}} {
				res := m.Match(db, live)
				if res.Known || res.Name != UnknownName || res.Index != -1 {
					t.Errorf("expected unknown for %d-value embedding, got %+v", len(live), res)
				}
			}
		})
	}
}

func TestMatcher_FirstIgnoresIndex(t *testing.T) {
	db := twoPeople()
	idx := database.NewHNSWIndex(string(MetricEuclidean))
	if err := idx.BuildFromDatabase(db); err != nil {
		t.Fatal(err)
	}

	m, _ := NewMatcher(0.6, TieBreakFirst, MetricEuclidean)
	m.UseIndex(idx)

	if res := m.Match(db, []float32{0, 0, 0}); res.Name != "alice" {
		t.Errorf("expected stored-order winner alice, got %+v", res)
	}
}

func TestDefaultTolerance(t *testing.T) {
	if DefaultTolerance(MetricEuclidean) != 0.6 {
		t.Error("expected 0.6 for euclidean")
	}
	if DefaultTolerance(MetricCosine) != 0.5 {
		t.Error("expected 0.5 for cosine")
	}
}
