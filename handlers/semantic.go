package handlers

import (
	"sync"

	"entitystack/chunking"
	"entitystack/entity"
	"entitystack/logger"
	"entitystack/txn"
)

// Flusher is satisfied by a backend's vector store when persisting the
// HNSW blob after a mutation is meaningful (the web backend); the native
// backend has nothing to flush, since SQLite is already its store of
// record for vectors.
type Flusher interface {
	AfterMutation() error
}

// SemanticIndexableHandler runs chunking.Service around the save/delete
// lifecycle of spec.md §4.7 handler 1: chunk regeneration and HNSW
// mutation happen outside the transaction (beforeSave/beforeDelete);
// committing the chunk registry rows happens inside it.
type SemanticIndexableHandler struct {
	Base
	Chunking *chunking.Service
	Flusher  Flusher // optional

	mu    sync.Mutex
	stash map[string][]*entity.Chunk
}

func NewSemanticIndexableHandler(chunking *chunking.Service, flusher Flusher) *SemanticIndexableHandler {
	return &SemanticIndexableHandler{Chunking: chunking, Flusher: flusher, stash: make(map[string][]*entity.Chunk)}
}

func (h *SemanticIndexableHandler) BeforeSave(e entity.Entity) error {
	si, ok := e.(entity.SemanticIndexable)
	if !ok {
		return nil
	}
	chunks, err := h.Chunking.IndexEntity(si)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.stash[si.GetUUID()] = chunks
	h.mu.Unlock()
	return nil
}

func (h *SemanticIndexableHandler) BeforeSaveInTransaction(ctx txn.Context, e entity.Entity) error {
	si, ok := e.(entity.SemanticIndexable)
	if !ok {
		return nil
	}
	h.mu.Lock()
	chunks := h.stash[si.GetUUID()]
	h.mu.Unlock()
	return h.Chunking.CommitRegistry(ctx, si.GetUUID(), chunks)
}

func (h *SemanticIndexableHandler) AfterSave(e entity.Entity) {
	if si, ok := e.(entity.SemanticIndexable); ok {
		h.mu.Lock()
		delete(h.stash, si.GetUUID())
		h.mu.Unlock()
	}
	if h.Flusher == nil {
		return
	}
	if err := h.Flusher.AfterMutation(); err != nil {
		logger.Warn("semantic handler: best-effort index flush failed: %v", err)
	}
}

func (h *SemanticIndexableHandler) BeforeDelete(e entity.Entity) error {
	if si, ok := e.(entity.SemanticIndexable); ok {
		h.Chunking.DeleteByEntityUUID(si.GetUUID())
	}
	return nil
}

func (h *SemanticIndexableHandler) BeforeDeleteInTransaction(ctx txn.Context, e entity.Entity) error {
	si, ok := e.(entity.SemanticIndexable)
	if !ok {
		return nil
	}
	return h.Chunking.DeleteByEntityUUIDInTx(ctx, si.GetUUID())
}
