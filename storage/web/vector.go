package web

import (
	"go.etcd.io/bbolt"

	"entitystack/entity"
	"entitystack/errors"
	"entitystack/hnsw"
)

const indexBucket = "_hnsw_index"

// VectorStore layers semantic search on a Store[T] and keeps the index
// durable across restarts by flushing its gob-encoded form into its own
// bbolt bucket every flushEvery mutations (spec.md §4.3), so LoadIndex can
// restore the graph without re-adding every stored vector; RebuildIndex
// recreates it from the embeddings held in the entity bodies instead.
type VectorStore[T entity.Embeddable] struct {
	*Store[T]
	index      *hnsw.Index
	key        string
	flushEvery int
}

func NewVectorStore[T entity.Embeddable](store *Store[T], index *hnsw.Index, flushEvery int) *VectorStore[T] {
	if flushEvery <= 0 {
		flushEvery = 50
	}
	return &VectorStore[T]{Store: store, index: index, key: store.table, flushEvery: flushEvery}
}

// LoadIndex restores the persisted index blob for this entity type, if
// one was ever flushed. Call once at startup before serving traffic.
func (v *VectorStore[T]) LoadIndex() error {
	var data []byte
	err := v.Store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(indexBucket))
		if b == nil {
			return nil
		}
		if blob := b.Get([]byte(v.key)); blob != nil {
			data = append([]byte(nil), blob...)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(v.key, err)
	}
	if data == nil {
		return nil
	}
	loaded, err := hnsw.Load(data)
	if err != nil {
		return errors.Wrap(v.key, err)
	}
	*v.index = *loaded
	return nil
}

func (v *VectorStore[T]) flushIfDue() error {
	if v.index.MutationsSinceFlush() < v.flushEvery {
		return nil
	}
	return v.Flush()
}

// Flush persists the index unconditionally, regardless of the mutation
// counter. Call it from a graceful-shutdown path so a short-lived process
// never loses the tail of unflushed mutations.
func (v *VectorStore[T]) Flush() error {
	data, err := v.index.Save()
	if err != nil {
		return err
	}
	err = v.Store.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(indexBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(v.key), data)
	})
	if err != nil {
		return errors.Wrap(v.key, err)
	}
	v.index.ResetMutationCounter()
	return nil
}

// Index exposes the live index so repository code can Add/Delete vectors
// as part of a save/delete flow, then call flushIfDue via AfterMutation.
func (v *VectorStore[T]) Index() *hnsw.Index { return v.index }

// AfterMutation flushes the index once its own mutation counter has
// reached flushEvery. The index counts every Add/Delete itself, so one
// call after a batch of mutations (the semantic handler makes one per
// save) checks the whole batch.
func (v *VectorStore[T]) AfterMutation() error { return v.flushIfDue() }

func (v *VectorStore[T]) IndexSize() int { return v.index.Size() }

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
	return v.Flush()
}

func (v *VectorStore[T]) SemanticSearch(queryVector []float32, k int, minSimilarity float32) ([]T, error) {
	neighbors := v.index.Search(queryVector, k)
	out := make([]T, 0, len(neighbors))
	for _, n := range neighbors {
		similarity := 1 - n.Distance
		if similarity < minSimilarity {
			continue
		}
		e, found, err := v.Store.findChecked(n.ID)
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
