package handlers

import (
	"strings"

	"entitystack/embedding"
	"entitystack/entity"
)

// EmbeddableHandler computes a whole-entity embedding synchronously
// before the save transaction opens (spec.md §4.7 handler 2). When an
// embedding queue is configured, the caller leaves this handler out of
// repository.Config.Handlers; the repository runs whatever handlers it is
// given and does not remove it. The background-fill path (spec.md §4.8)
// is an alternative to this handler, not a variant of it.
type EmbeddableHandler struct {
	Base
	Embedder embedding.Service
}

func NewEmbeddableHandler(embedder embedding.Service) *EmbeddableHandler {
	return &EmbeddableHandler{Embedder: embedder}
}

func (h *EmbeddableHandler) BeforeSave(e entity.Entity) error {
	em, ok := e.(entity.Embeddable)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(em.ToEmbeddingInput())
	if text == "" {
		em.SetEmbedding(nil)
		return nil
	}
	// A nil return from Embed means "service unavailable"; per spec.md §6
	// that is not an error, so the entity simply keeps no embedding.
	em.SetEmbedding(h.Embedder.Embed(text))
	return nil
}
