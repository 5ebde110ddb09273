// Package matcher matches live face encodings against the staff roster.
package matcher

import (
	"errors"
	"math"
	"sync"

	"github.com/facekiosk/facekiosk/internal/store"
	"gonum.org/v1/gonum/floats"
)

// ErrNoMatch is returned when no staff member clears any tolerance rung.
var ErrNoMatch = errors.New("no matching staff")

// tieEpsilon treats distances this close as equal; ties go to the lowest
// staff ID so repeated frames resolve to the same person.
const tieEpsilon = 1e-9

// searchCandidates is how many neighbors the roster index returns before
// exact re-ranking.
const searchCandidates = 16

// Match is a successful recognition.
type Match struct {
	Staff     store.Staff `json:"staff"`
	Distance  float64     `json:"distance"`
	Tolerance float64     `json:"tolerance"` // The rung the match was accepted at
}

// Matcher holds the roster snapshot and the tolerance ladder. The ladder is
// ordered strictest first; an encoding is accepted at the first rung its
// best candidate clears.
type Matcher struct {
	tolerances     []float64
	indexThreshold int

	mu     sync.RWMutex
	roster map[int64]store.Staff
	index  *RosterIndex
}

// New creates a Matcher. Tolerances must be sorted ascending. Rosters of at
// least indexThreshold recognizable staff get an in-memory HNSW prefilter;
// zero or negative disables the index.
func New(tolerances []float64, indexThreshold int) *Matcher {
	return &Matcher{
		tolerances:     tolerances,
		indexThreshold: indexThreshold,
		roster:         make(map[int64]store.Staff),
	}
}

// SetRoster replaces the roster snapshot. Staff without encodings are skipped.
func (m *Matcher) SetRoster(staff []store.Staff) {
	roster := make(map[int64]store.Staff, len(staff))
	for _, s := range staff {
		if s.HasEncoding() {
			roster[s.ID] = s
		}
	}

	var index *RosterIndex
	if m.indexThreshold > 0 && len(roster) >= m.indexThreshold {
		index = NewRosterIndex()
		index.Build(staff)
	}

	m.mu.Lock()
	m.roster = roster
	m.index = index
	m.mu.Unlock()
}

// RosterSize returns the number of recognizable staff in the snapshot.
func (m *Matcher) RosterSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roster)
}

// IndexEnabled reports whether the HNSW prefilter is active.
func (m *Matcher) IndexEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index != nil
}

// Match finds the staff member for a live encoding, or ErrNoMatch.
func (m *Matcher) Match(encoding []float32) (*Match, error) {
	if len(encoding) == 0 {
		return nil, ErrNoMatch
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.roster) == 0 {
		return nil, ErrNoMatch
	}

	best, bestDist := m.bestCandidate(encoding)
	if best == nil {
		return nil, ErrNoMatch
	}

	for _, tol := range m.tolerances {
		if bestDist <= tol {
			return &Match{Staff: *best, Distance: bestDist, Tolerance: tol}, nil
		}
	}
	return nil, ErrNoMatch
}

// bestCandidate returns the closest roster member. With the index enabled
// only the top neighbors are re-ranked exactly.
func (m *Matcher) bestCandidate(encoding []float32) (*store.Staff, float64) {
	query := toFloat64(encoding)

	var best *store.Staff
	bestDist := math.Inf(1)

	consider := func(s store.Staff) {
		if len(s.Encoding) != len(encoding) {
			return
		}
		d := floats.Distance(query, toFloat64(s.Encoding), 2)
		if d < bestDist-tieEpsilon {
			cp := s
			best = &cp
			bestDist = d
			return
		}
		// Equal within epsilon: lowest staff ID wins.
		if best != nil && math.Abs(d-bestDist) <= tieEpsilon && s.ID < best.ID {
			cp := s
			best = &cp
			bestDist = d
		}
	}

	if m.index != nil {
		for _, id := range m.index.Search(encoding, searchCandidates) {
			if s, ok := m.roster[id]; ok {
				consider(s)
			}
		}
		return best, bestDist
	}

	for _, s := range m.roster {
		consider(s)
	}
	return best, bestDist
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
