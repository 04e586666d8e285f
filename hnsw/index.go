// Package hnsw wraps github.com/coder/hnsw into the Add/Delete/Search/
// Save/Load/Size contract spec.md §4.3 asks for, keyed by an opaque
// string id (an entity uuid or a chunk uuid) rather than the library's
// own generic key type.
//
// "Distance" is reported as 1 - cosine similarity, matching spec.md's
// convention that similarity = 1 - distance.
package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"sync"

	chnsw "github.com/coder/hnsw"
)

// Neighbor is one search result.
type Neighbor struct {
	ID       string
	Distance float32
}

// Index is an in-memory approximate-nearest-neighbor graph over
// fixed-dimension float32 vectors. All mutation methods are safe for
// concurrent use; the shared-resource policy in spec.md §5 makes this
// index the one contended resource callers never see a lock for
// directly.
type Index struct {
	mu    sync.RWMutex
	graph *chnsw.Graph[string]
	dim   int

	// vectors mirrors what's in graph, because coder/hnsw does not
	// expose a way to serialize its internal graph layout. Keeping a
	// flat copy lets Save/Load round-trip the *query answers* (the
	// round-trip law in spec.md §8) without depending on an unstable
	// internal format: Load just re-Adds every vector into a fresh
	// graph.
	vectors map[string][]float32

	dirty     bool
	mutations int
}

// New creates an empty index using cosine distance.
func New() *Index {
	g := chnsw.NewGraph[string]()
	g.Distance = chnsw.CosineDistance
	return &Index{graph: g, vectors: make(map[string][]float32)}
}

// Add inserts or replaces the vector for id.
func (ix *Index) Add(id string, vector []float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim == 0 {
		ix.dim = len(vector)
	}
	if _, exists := ix.vectors[id]; exists {
		ix.graph.Delete(id)
	}
	ix.graph.Add(chnsw.MakeNode(id, vector))
	ix.vectors[id] = vector
	ix.dirty = true
	ix.mutations++
}

// Delete removes id from the index. It is a no-op if id is absent.
func (ix *Index) Delete(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.vectors[id]; !exists {
		return
	}
	ix.graph.Delete(id)
	delete(ix.vectors, id)
	ix.dirty = true
	ix.mutations++
}

// Search returns the k nearest neighbors to query, ordered by ascending
// distance (descending similarity). k == 0 returns an empty slice.
func (ix *Index) Search(query []float32, k int) []Neighbor {
	if k == 0 {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	nodes := ix.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Neighbor{ID: n.Key, Distance: chnsw.CosineDistance(query, n.Value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Size returns the number of vectors currently indexed.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// MutationsSinceFlush reports how many Add/Delete calls happened since
// the last ResetMutationCounter, for the "flush every N mutations"
// heuristic in spec.md §4.3.
func (ix *Index) MutationsSinceFlush() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.mutations
}

func (ix *Index) ResetMutationCounter() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.mutations = 0
	ix.dirty = false
}

func (ix *Index) Dirty() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dirty
}

type gobEntry struct {
	ID     string
	Vector []float32
}

// Save serializes the flat id->vector set, not the library's internal
// graph structure (see the field comment on vectors). Load rebuilds an
// operationally-equivalent graph by re-adding every vector.
func (ix *Index) Save() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]gobEntry, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		entries = append(entries, gobEntry{ID: id, Vector: v})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return nil, fmt.Errorf("hnsw: encode index: %w", err)
	}
	return buf.Bytes(), nil
}

// Load replaces the index's contents with the set encoded in data.
func Load(data []byte) (*Index, error) {
	var entries []gobEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("hnsw: decode index: %w", err)
	}
	ix := New()
	for _, e := range entries {
		ix.Add(e.ID, e.Vector)
	}
	ix.ResetMutationCounter()
	return ix, nil
}
