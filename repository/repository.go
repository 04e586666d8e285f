// Package repository implements the entity repository orchestrator of
// spec.md §4.8: the single public surface applications call, wiring a
// storage.Adapter, an ordered handler chain, an optional txn.Coordinator
// and an optional background embedding queue together behind the save
// and delete algorithms the spec defines exactly.
package repository

import (
	"entitystack/embedqueue"
	"entitystack/entity"
	"entitystack/handlers"
	"entitystack/logger"
	"entitystack/storage"
	"entitystack/txn"
)

// Config wires one Repository[T] instance. SaveStores and DeleteStores
// are the object-store/bucket names the repository must declare to its
// coordinator for each operation; a Versionable entity's SaveStores is
// typically {entityStore, versionStore}, an Edgeable entity's
// DeleteStores is typically {entityStore, edgeStore}. HasCoordinator
// distinguishes "no transaction support" from "Coordinator happens to be
// txn.NoCoordinator{}" so the repository can skip the *InTransaction
// hooks entirely rather than calling them and watching every attempt
// fail.
// vectorAdapter mirrors storage.VectorAdapter's method set without its
// entity.Embeddable constraint on T, so a Repository[T] can hold one even
// though Repository itself is only constrained to entity.Entity (most
// entity types never embed a vector). A concrete storage.VectorAdapter[T]
// built over an Embeddable T satisfies this structurally.
type vectorAdapter[T entity.Entity] interface {
	SemanticSearch(queryVector []float32, k int, minSimilarity float32) ([]T, error)
	IndexSize() int
	RebuildIndex(generate func(T) []float32) error
}

type Config[T entity.Entity] struct {
	EntityType     string
	Adapter        storage.Adapter[T]
	Vectors        vectorAdapter[T] // optional
	Handlers       []handlers.Handler
	Coordinator    txn.Coordinator
	HasCoordinator bool
	SaveStores     []string
	DeleteStores   []string
	Queue          *embedqueue.Queue // optional; see Save's background-embedding note
}

// Repository is the generic orchestrator of spec.md §4.8.
type Repository[T entity.Entity] struct {
	cfg Config[T]
}

func New[T entity.Entity](cfg Config[T]) *Repository[T] {
	if cfg.Coordinator == nil {
		cfg.Coordinator = txn.NoCoordinator{}
	}
	return &Repository[T]{cfg: cfg}
}

// Save runs the full beforeSave / transactional / afterSave pipeline and
// returns the saved entity's id.
//
// Background embedding interaction (spec.md §4.8): when cfg.Queue is
// set, the caller is expected to have omitted handlers.EmbeddableHandler
// from cfg.Handlers at construction time, so the save below persists the
// entity with no embedding and this method enqueues a task afterward;
// the queue worker fills the embedding in later via SaveNoTouch.
func (r *Repository[T]) Save(e T) (int64, error) {
	for _, h := range r.cfg.Handlers {
		if err := h.BeforeSave(e); err != nil {
			return 0, err
		}
	}

	var saved T
	if r.cfg.HasCoordinator {
		var txErr error
		err := r.cfg.Coordinator.Transaction(r.cfg.SaveStores, func(ctx txn.Context) error {
			for _, h := range r.cfg.Handlers {
				if err := h.BeforeSaveInTransaction(ctx, e); err != nil {
					return err
				}
			}
			var err error
			saved, err = r.cfg.Adapter.SaveInTx(ctx, e)
			if err != nil {
				txErr = err
				return err
			}
			for _, h := range r.cfg.Handlers {
				if err := h.AfterSaveInTransaction(ctx, saved); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if txErr != nil {
				return 0, txErr
			}
			return 0, err
		}
	} else {
		var err error
		saved, err = r.cfg.Adapter.Save(e)
		if err != nil {
			return 0, err
		}
	}

	for _, h := range r.cfg.Handlers {
		h.AfterSave(saved)
	}

	if r.cfg.Queue != nil {
		if em, ok := entity.Entity(saved).(entity.Embeddable); ok {
			text := em.ToEmbeddingInput()
			if text != "" {
				if _, err := r.cfg.Queue.Enqueue(r.cfg.EntityType, saved.GetUUID(), text); err != nil {
					logger.Warn("repository: enqueueing embedding task for %s %s failed: %v", r.cfg.EntityType, saved.GetUUID(), err)
				}
			}
		}
	}

	return saved.GetID(), nil
}

// SaveAll saves each entity in turn. Unlike Save it is not itself wrapped
// in one transaction spanning every element: spec.md only specifies the
// single-entity save algorithm, and batching would serialize every
// handler's I/O-bearing beforeSave behind one lock for no benefit the
// spec asks for.
func (r *Repository[T]) SaveAll(es []T) ([]int64, error) {
	ids := make([]int64, 0, len(es))
	for _, e := range es {
		id, err := r.Save(e)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Repository[T]) FindByID(id int64) (T, error)     { return r.cfg.Adapter.FindByID(id) }
func (r *Repository[T]) FindByUUID(u string) (T, error)   { return r.cfg.Adapter.FindByUUID(u) }
func (r *Repository[T]) GetByID(id int64) (T, error)      { return r.cfg.Adapter.GetByID(id) }
func (r *Repository[T]) GetByUUID(u string) (T, error)    { return r.cfg.Adapter.GetByUUID(u) }
func (r *Repository[T]) FindAll() ([]T, error)            { return r.cfg.Adapter.FindAll() }
func (r *Repository[T]) FindUnsynced() ([]T, error)       { return r.cfg.Adapter.FindUnsynced() }
func (r *Repository[T]) Count() (int64, error)            { return r.cfg.Adapter.Count() }

// Delete runs the full beforeDelete / transactional cascade pipeline.
// It returns false with no error when the entity does not exist.
func (r *Repository[T]) Delete(uuid string) (bool, error) {
	e, err := r.cfg.Adapter.FindByUUID(uuid)
	if err != nil {
		return false, err
	}
	if entity.IsNil(e) {
		return false, nil
	}

	for _, h := range r.cfg.Handlers {
		if err := h.BeforeDelete(e); err != nil {
			return false, err
		}
	}

	if r.cfg.HasCoordinator {
		err := r.cfg.Coordinator.Transaction(r.cfg.DeleteStores, func(ctx txn.Context) error {
			for _, h := range r.cfg.Handlers {
				if err := h.BeforeDeleteInTransaction(ctx, e); err != nil {
					return err
				}
			}
			return r.cfg.Adapter.DeleteByUUIDInTx(ctx, uuid)
		})
		if err != nil {
			return false, err
		}
		return true, nil
	}

	if _, err := r.cfg.Adapter.DeleteByUUID(uuid); err != nil {
		return false, err
	}
	return true, nil
}

// SemanticSearch delegates to the vector adapter; it returns an empty
// slice, not an error, when no vector adapter was configured, matching
// spec.md §4.8's "returns [] if the adapter does not support vectors".
func (r *Repository[T]) SemanticSearch(queryVector []float32, k int, minSimilarity float32) ([]T, error) {
	if r.cfg.Vectors == nil {
		return nil, nil
	}
	return r.cfg.Vectors.SemanticSearch(queryVector, k, minSimilarity)
}

// WriteEmbedding implements embedqueue.EntityWriter: it loads the entity
// by uuid, sets its embedding and writes it back with touch=false so the
// background fill-in does not perturb UpdatedAt (spec.md §4.5). found is
// false, not an error, when the entity was deleted between enqueue and
// processing.
func (r *Repository[T]) WriteEmbedding(entityUUID string, vector []float32) (bool, error) {
	e, err := r.cfg.Adapter.FindByUUID(entityUUID)
	if err != nil {
		return false, err
	}
	if entity.IsNil(e) {
		return false, nil
	}
	em, ok := entity.Entity(e).(entity.Embeddable)
	if !ok {
		return false, nil
	}
	em.SetEmbedding(vector)
	if _, err := r.cfg.Adapter.SaveNoTouch(e); err != nil {
		return false, err
	}
	return true, nil
}

// PreviousJSON implements handlers.PreviousStateLoader by delegating to
// the repository's own adapter. It returns (nil, nil) for an entity
// being saved for the first time, which VersionableHandler treats as
// "no prior version to diff against".
func (r *Repository[T]) PreviousJSON(ctx txn.Context, uuid string) ([]byte, error) {
	prev, err := r.cfg.Adapter.FindByUUIDInTx(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if entity.IsNil(prev) {
		return nil, nil
	}
	return prev.ToJSON()
}
