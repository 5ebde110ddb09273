package matcher

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/facekiosk/facekiosk/internal/store"
)

// hnswMaxNeighbors is the M parameter of the graph.
const hnswMaxNeighbors = 16

// RosterIndex is an in-memory HNSW graph over staff encodings. Exact
// distances are recomputed by the matcher, the graph only narrows the
// candidate set for large rosters.
type RosterIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int64]
	size  int
}

// NewRosterIndex creates an empty index.
func NewRosterIndex() *RosterIndex {
	return &RosterIndex{}
}

// Build replaces the graph with one built from the given staff. Staff
// without encodings are skipped.
func (idx *RosterIndex) Build(staff []store.Staff) {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	size := 0
	for i := range staff {
		if !staff[i].HasEncoding() {
			continue
		}
		g.Add(hnsw.MakeNode(staff[i].ID, staff[i].Encoding))
		size++
	}

	idx.mu.Lock()
	idx.graph = g
	idx.size = size
	idx.mu.Unlock()
}

// Search returns the staff IDs of the k nearest neighbors.
func (idx *RosterIndex) Search(query []float32, k int) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || idx.size == 0 {
		return nil
	}

	neighbors := idx.graph.Search(query, k)
	ids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids
}

// Len returns the number of indexed staff.
func (idx *RosterIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size
}
