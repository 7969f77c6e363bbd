// Package facematch decides which enrolled person, if any, a live face
// embedding belongs to, and normalizes person names for comparison.
package facematch

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// UnknownName labels faces that match nobody. It is drawn on the preview but
// never written to the ledger.
const UnknownName = "Unknown"

// TieBreak selects the winner when several stored embeddings are within
// tolerance of a live one.
type TieBreak string

const (
	// TieBreakFirst picks the first matching entry in stored order.
	TieBreakFirst TieBreak = "first"
	// TieBreakClosest picks the matching entry with the smallest distance.
	TieBreakClosest TieBreak = "closest"
)

// Metric is the distance function between embeddings.
type Metric string

const (
	MetricEuclidean Metric = "euclidean" // dlib descriptors, tolerance 0.6
	MetricCosine    Metric = "cosine"    // InsightFace embeddings, tolerance 0.5
)

// DefaultTolerance returns the usual threshold for metric.
func DefaultTolerance(metric Metric) float64 {
	if metric == MetricCosine {
		return 0.5
	}
	return 0.6
}

// Match is the outcome for one live face. Index is -1 and Known false when
// nothing is within tolerance.
type Match struct {
	Name     string
	Distance float64
	Index    int
	Known    bool
}

// Matcher compares live embeddings against an encoding database.
type Matcher struct {
	Tolerance float64
	TieBreak  TieBreak
	Metric    Metric

	index *database.HNSWIndex
}

// NewMatcher validates the settings and returns a matcher.
func NewMatcher(tolerance float64, tieBreak TieBreak, metric Metric) (*Matcher, error) {
	if tolerance <= 0 {
		return nil, fmt.Errorf("tolerance must be positive, got %v", tolerance)
	}
	switch tieBreak {
	case TieBreakFirst, TieBreakClosest:
	default:
		return nil, fmt.Errorf("unknown tie-break policy %q", tieBreak)
	}
	switch metric {
	case MetricEuclidean, MetricCosine:
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	return &Matcher{Tolerance: tolerance, TieBreak: tieBreak, Metric: metric}, nil
}

// UseIndex makes the closest policy take candidates from an HNSW graph built
// over the same database passed to Match. The first policy ignores it because
// it depends on stored order.
func (m *Matcher) UseIndex(idx *database.HNSWIndex) {
	m.index = idx
}

func (m *Matcher) distance(a, b []float32) float64 {
	if m.Metric == MetricCosine {
		return database.CosineDistance(a, b)
	}
	return database.EuclideanDistance(a, b)
}

// Distances returns the distance from live to every stored embedding.
func (m *Matcher) Distances(db *database.EncodingDatabase, live []float32) []float64 {
	out := make([]float64, db.Len())
	for i, stored := range db.Encodings {
		out[i] = m.distance(stored, live)
	}
	return out
}

// Compare returns the match vector: entry i is true when stored embedding i
// is within tolerance of live.
func (m *Matcher) Compare(db *database.EncodingDatabase, live []float32) []bool {
	dists := m.Distances(db, live)
	out := make([]bool, len(dists))
	for i, d := range dists {
		out[i] = d <= m.Tolerance
	}
	return out
}

// Match identifies live against db according to the tie-break policy. An
// embedding of another dimension than the database never matches.
func (m *Matcher) Match(db *database.EncodingDatabase, live []float32) Match {
	unknown := Match{Name: UnknownName, Index: -1}
	if db.Len() == 0 || len(live) == 0 || (db.Dim > 0 && len(live) != db.Dim) {
		return unknown
	}

	if m.TieBreak == TieBreakClosest && m.index != nil && !m.index.IsEmpty() {
		if res, ok := m.matchIndexed(db, live); ok {
			return res
		}
	}

	dists := m.Distances(db, live)
	best := unknown
	for i, d := range dists {
		if d > m.Tolerance {
			continue
		}
		if m.TieBreak == TieBreakFirst {
			return Match{Name: db.Names[i], Distance: d, Index: i, Known: true}
		}
		if !best.Known || d < best.Distance {
			best = Match{Name: db.Names[i], Distance: d, Index: i, Known: true}
		}
	}
	return best
}

// matchIndexed looks up the nearest neighbors in the HNSW graph. The second
// result is false when the index could not answer and a linear scan is needed.
func (m *Matcher) matchIndexed(db *database.EncodingDatabase, live []float32) (Match, bool) {
	k := min(database.HNSWSearchMultiplier, db.Len())
	neighbors, err := m.index.Search(live, k)
	if err != nil || len(neighbors) == 0 {
		return Match{}, false
	}
	nearest := neighbors[0]
	if nearest.Index < 0 || nearest.Index >= db.Len() {
		return Match{}, false
	}
	if nearest.Distance > m.Tolerance {
		return Match{Name: UnknownName, Index: -1}, true
	}
	return Match{Name: db.Names[nearest.Index], Distance: nearest.Distance, Index: nearest.Index, Known: true}, true
}
