package handlers

import (
	"sync"

	"entitystack/entity"
	"entitystack/txn"
)

// EdgeCollector is the edge-adapter surface EdgeCascadeDeleteHandler
// needs: find every edge touching a node, and delete one by uuid inside
// the delete transaction.
type EdgeCollector interface {
	EdgesTouching(entityUUID string) ([]string, error)
	DeleteByUUIDInTx(ctx txn.Context, edgeUUID string) error
}

// EdgeCascadeDeleteHandler removes every edge referencing a deleted node
// (spec.md §4.7 handler 4). Collection happens before the delete
// transaction opens so a failure there aborts the delete with nothing
// written; the actual deletes run inside the transaction so they are
// atomic with the node row's removal.
type EdgeCascadeDeleteHandler struct {
	Base
	Edges EdgeCollector

	mu    sync.Mutex
	stash map[string][]string
}

func NewEdgeCascadeDeleteHandler(edges EdgeCollector) *EdgeCascadeDeleteHandler {
	return &EdgeCascadeDeleteHandler{Edges: edges, stash: make(map[string][]string)}
}

func (h *EdgeCascadeDeleteHandler) BeforeDelete(e entity.Entity) error {
	if _, ok := e.(entity.Edgeable); !ok {
		return nil
	}
	edgeUUIDs, err := h.Edges.EdgesTouching(e.GetUUID())
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.stash[e.GetUUID()] = edgeUUIDs
	h.mu.Unlock()
	return nil
}

func (h *EdgeCascadeDeleteHandler) BeforeDeleteInTransaction(ctx txn.Context, e entity.Entity) error {
	if _, ok := e.(entity.Edgeable); !ok {
		return nil
	}
	h.mu.Lock()
	edgeUUIDs := h.stash[e.GetUUID()]
	delete(h.stash, e.GetUUID())
	h.mu.Unlock()

	for _, uuid := range edgeUUIDs {
		if err := h.Edges.DeleteByUUIDInTx(ctx, uuid); err != nil {
			return err
		}
	}
	return nil
}
