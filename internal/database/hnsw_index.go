package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating a cached HNSW graph
// against the encoding database it was built from.
type HNSWIndexMetadata struct {
	Entries   int       `json:"entries"`
	Dim       int       `json:"dim"`
	Metric    string    `json:"metric"`
	TrainedAt time.Time `json:"trained_at"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// ErrDimensionMismatch is returned by Search for a query whose length differs
// from the indexed embeddings.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Neighbor is one search hit: the position of the entry in the encoding
// database and its distance to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// HNSWIndex wraps an HNSW graph over the entries of an EncodingDatabase.
// Node keys are entry positions, so callers resolve names through the
// database the index was built from.
type HNSWIndex struct {
	graph      *hnsw.Graph[int]
	savedGraph *hnsw.SavedGraph[int] // For persistence
	metric     string
	distance   func(a, b []float32) float64
	size       int
	dim        int
	mu         sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index for the given metric
// ("euclidean" or "cosine").
func NewHNSWIndex(metric string) *HNSWIndex {
	h := &HNSWIndex{metric: metric, distance: EuclideanDistance}
	if metric == "cosine" {
		h.distance = CosineDistance
	}
	return h
}

func (h *HNSWIndex) newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	if h.metric == "cosine" {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	return g
}

// BuildFromDatabase builds the index from every entry of db.
func (h *HNSWIndex) BuildFromDatabase(db *EncodingDatabase) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.savedGraph = nil
	if db.Len() == 0 {
		h.graph = nil
		h.size = 0
		h.dim = 0
		return nil
	}

	g := h.newGraph()
	for i, emb := range db.Encodings {
		if len(emb) == 0 {
			continue
		}
		if len(emb) != db.Dim {
			return fmt.Errorf("entry %d has dimension %d, expected %d", i, len(emb), db.Dim)
		}
		g.Add(hnsw.MakeNode(i, emb))
	}

	h.graph = g
	h.size = db.Len()
	h.dim = db.Dim
	return nil
}

// Search finds the k nearest entries to the query embedding, closest first.
func (h *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, errors.New("index not initialized")
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), h.dim)
	}

	var nodes []hnsw.Node[int]
	if h.savedGraph != nil {
		nodes = h.savedGraph.Search(query, k)
	} else {
		nodes = h.graph.Search(query, k)
	}

	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		// Recompute with the float64 metric so tolerances compare exactly
		// as in a linear scan.
		neighbors = append(neighbors, Neighbor{Index: n.Key, Distance: h.distance(query, n.Value)})
	}
	sortNeighbors(neighbors)
	return neighbors, nil
}

// sortNeighbors orders by distance, then by entry position for stable ties.
func sortNeighbors(ns []Neighbor) {
	for i := 1; i < len(ns); i++ {
		for j := i; j > 0; j-- {
			a, b := ns[j-1], ns[j]
			if a.Distance < b.Distance || (a.Distance == b.Distance && a.Index <= b.Index) {
				break
			}
			ns[j-1], ns[j] = b, a
		}
	}
}

// Count returns the number of indexed entries.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// SaveWithMetadata persists the graph to path and its metadata to path.meta.
func (h *HNSWIndex) SaveWithMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if h.savedGraph != nil {
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metadata.Metric = h.metric
	metadata.Entries = h.size
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// LoadFor loads a persisted graph if its metadata matches db. It returns
// false when the cached graph is missing or stale, in which case the caller
// should build from the database.
func (h *HNSWIndex) LoadFor(path string, db *EncodingDatabase) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	meta, err := LoadHNSWMetadata(path)
	if err != nil {
		return false, nil
	}
	if meta.Version != hnswMetadataVersion || meta.Metric != h.metric ||
		meta.Entries != db.Len() || meta.Dim != db.Dim || !sameTrainingRun(meta.TrainedAt, db.TrainedAt) {
		return false, nil
	}

	saved, err := hnsw.LoadSavedGraph[int](path)
	if err != nil {
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.savedGraph = saved
	h.graph = nil
	h.size = meta.Entries
	h.dim = meta.Dim
	return true, nil
}

// sameTrainingRun compares training timestamps at the microsecond precision
// PostgreSQL keeps.
func sameTrainingRun(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

// EnsureIndex returns an index for db, loading it from path when a fresh
// copy is cached there and rebuilding (and re-caching) it otherwise. An empty
// path keeps the index in memory only.
func EnsureIndex(db *EncodingDatabase, metric, path string) (*HNSWIndex, error) {
	idx := NewHNSWIndex(metric)
	if path != "" {
		ok, err := idx.LoadFor(path, db)
		if err != nil {
			return nil, err
		}
		if ok {
			return idx, nil
		}
	}

	if err := idx.BuildFromDatabase(db); err != nil {
		return nil, err
	}
	if path != "" {
		meta := HNSWIndexMetadata{Dim: db.Dim, TrainedAt: db.TrainedAt, BuildTime: time.Now()}
		if err := idx.SaveWithMetadata(path, meta); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
