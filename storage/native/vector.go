package native

import (
	"entitystack/entity"
	"entitystack/hnsw"
)

// VectorStore layers the semantic search extension of spec.md §4.1 on top
// of a Store[T] for entity types that also implement entity.Embeddable.
// The index is rebuilt in-process from the table's stored vectors when
// RebuildIndex is called (NewVectorStore does not rebuild it), since
// Backend A keeps no separate persisted HNSW blob — SQLite itself is the
// durable copy of record.
type VectorStore[T entity.Embeddable] struct {
	*Store[T]
	index *hnsw.Index
}

func NewVectorStore[T entity.Embeddable](store *Store[T], index *hnsw.Index) *VectorStore[T] {
	return &VectorStore[T]{Store: store, index: index}
}

// RebuildIndex repopulates the in-memory index from every row currently
// in the table, computing a fresh vector for any entity without one via
// generate. Intended for startup, after opening a database whose HNSW
// graph was never persisted.
func (v *VectorStore[T]) RebuildIndex(generate func(T) []float32) error {
	all, err := v.Store.FindAll()
	if err != nil {
		return err
	}
	for _, e := range all {
		vec := e.Embedding()
		if len(vec) == 0 && generate != nil {
			vec = generate(e)
		}
		if len(vec) == 0 {
			continue
		}
		v.index.Add(e.GetUUID(), vec)
	}
	return nil
}

func (v *VectorStore[T]) IndexSize() int { return v.index.Size() }

// SemanticSearch finds the k entities whose stored vectors are nearest to
// queryVector, at or above minSimilarity, then hydrates full rows from
// SQLite in nearest-first order. Results below minSimilarity, and index
// hits whose row has since been deleted, are silently dropped.
func (v *VectorStore[T]) SemanticSearch(queryVector []float32, k int, minSimilarity float32) ([]T, error) {
	neighbors := v.index.Search(queryVector, k)
	out := make([]T, 0, len(neighbors))
	for _, n := range neighbors {
		similarity := 1 - n.Distance
		if similarity < minSimilarity {
			continue
		}
		e, found, err := v.Store.findOneChecked(v.Store.db, "uuid = ?", n.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
