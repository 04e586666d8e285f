// Package storage defines the backend-agnostic Adapter contract of
// spec.md §4.1. Two sibling packages, native and web, implement it for
// Backend A (an embedded SQLite file) and Backend B (a pure-Go bbolt file
// standing in for a browser's indexed object store) respectively.
package storage

import (
	"entitystack/entity"
	"entitystack/txn"
)

// Adapter is the full per-entity-type CRUD + transactional-CRUD surface
// spec.md §4.1 requires. find* never errors for "not found" (it returns
// the zero value of T, which is nil for the pointer entity types this
// module uses); get* raises errors.EntityNotFound.
type Adapter[T entity.Entity] interface {
	FindByID(id int64) (T, error)
	FindByUUID(uuid string) (T, error)
	GetByID(id int64) (T, error)
	GetByUUID(uuid string) (T, error)
	FindAll() ([]T, error)
	FindUnsynced() ([]T, error)
	Count() (int64, error)

	Save(e T) (T, error)
	// SaveNoTouch persists e without refreshing UpdatedAt, regardless of
	// e.TouchOnSave(). The embedding queue worker uses this to fill in a
	// computed embedding without perturbing the entity's update time
	// (spec.md §4.5).
	SaveNoTouch(e T) (T, error)
	SaveAll(es []T) ([]T, error)

	Delete(id int64) (bool, error)
	DeleteByUUID(uuid string) (bool, error)

	SaveInTx(ctx txn.Context, e T) (T, error)
	SaveAllInTx(ctx txn.Context, es []T) ([]T, error)
	FindByIDInTx(ctx txn.Context, id int64) (T, error)
	FindByUUIDInTx(ctx txn.Context, uuid string) (T, error)
	FindAllInTx(ctx txn.Context) ([]T, error)
	DeleteInTx(ctx txn.Context, id int64) error
	DeleteByUUIDInTx(ctx txn.Context, uuid string) error
	DeleteAllInTx(ctx txn.Context) error
}

// VectorAdapter is the semantic search extension of spec.md §4.1 for
// Embeddable entity types.
type VectorAdapter[T entity.Embeddable] interface {
	SemanticSearch(queryVector []float32, k int, minSimilarity float32) ([]T, error)
	IndexSize() int
	RebuildIndex(generate func(T) []float32) error
}
