package chunking

import (
	"strings"

	"github.com/google/uuid"

	"entitystack/embedding"
	"entitystack/entity"
	"entitystack/hnsw"
	"entitystack/logger"
	"entitystack/txn"
)

// Registry is the persistence surface the chunking service needs for the
// chunk registry described in spec.md §4.4: commit newly generated chunks
// inside the caller's transaction, look up an entity's existing chunks,
// and evict them transactionally on update/delete. storage/native and
// storage/web's Store[*entity.Chunk] both satisfy this directly, the
// same way they satisfy version.Adapter (see DESIGN.md's client-side
// filtering decision).
type Registry interface {
	FindByField(value string, get func(*entity.Chunk) string) ([]*entity.Chunk, error)
	SaveAllInTx(ctx txn.Context, chunks []*entity.Chunk) ([]*entity.Chunk, error)
	DeleteByFieldInTx(ctx txn.Context, value string, get func(*entity.Chunk) string) error
}

func bySourceEntityUUID(c *entity.Chunk) string { return c.SourceEntityUUID }

// Service turns a SemanticIndexable entity's text into hierarchical
// chunks, embeds them, keeps them in the shared HNSW index, and tracks
// which chunk ids belong to which entity uuid via Registry.
type Service struct {
	Index    *hnsw.Index
	Embedder embedding.Service
	Registry Registry
}

func New(index *hnsw.Index, embedder embedding.Service, registry Registry) *Service {
	return &Service{Index: index, Embedder: embedder, Registry: registry}
}

// IndexEntity is the core update operation of spec.md §4.4: it evicts the
// entity's prior chunks from the in-memory index (a no-op if none exist),
// generates fresh chunks from the entity's current text, embeds and adds
// them to the index, and returns the new chunk rows for the caller to
// commit to the registry inside its transaction. It does not itself touch
// any store — that happens in CommitRegistry, inside the save
// transaction, per the beforeSave/beforeSaveInTransaction split in
// spec.md §4.7.
func (s *Service) IndexEntity(e entity.SemanticIndexable) ([]*entity.Chunk, error) {
	s.evictFromIndex(e.GetUUID())

	text := strings.TrimSpace(e.ToChunkableInput())
	if text == "" {
		return nil, nil
	}

	var textChunks []TextChunk
	if e.ChunkPreset() == entity.PresetChild {
		textChunks = semanticChunk(text, presetFor(entity.PresetChild), s.Embedder)
	} else {
		parents := semanticChunk(text, presetFor(entity.PresetParent), s.Embedder)
		for _, p := range parents {
			textChunks = append(textChunks, p)
			for _, c := range semanticChunk(p.Text, presetFor(entity.PresetChild), s.Embedder) {
				c.StartToken += p.StartToken
				c.EndToken += p.StartToken
				textChunks = append(textChunks, c)
			}
		}
	}

	chunks := make([]*entity.Chunk, 0, len(textChunks))
	for _, tc := range textChunks {
		c := &entity.Chunk{
			SourceEntityUUID: e.GetUUID(),
			SourceEntityType: e.TypeName(),
			StartToken:       tc.StartToken,
			EndToken:         tc.EndToken,
			Config:           chunkConfigFor(e, tc),
		}
		c.SetUUID(uuid.NewString())
		chunks = append(chunks, c)
		if tc.Embedding != nil {
			s.Index.Add(c.UUID, tc.Embedding)
		}
	}
	return chunks, nil
}

func chunkConfigFor(e entity.SemanticIndexable, tc TextChunk) entity.ChunkPreset {
	// Child-level sub-chunks are narrower than their parent window; a
	// cheap, grounded-enough heuristic is to compare against the child
	// preset's max size rather than threading level info through TextChunk.
	if tc.EndToken-tc.StartToken <= presetFor(entity.PresetChild).MaxChunkSize && e.ChunkPreset() != entity.PresetChild {
		return entity.PresetChild
	}
	return e.ChunkPreset()
}

// CommitRegistry persists the chunk set IndexEntity produced, replacing
// whatever was previously registered for the entity. Must run inside the
// same transaction as the entity row write (spec.md §4.7,
// beforeSaveInTransaction).
func (s *Service) CommitRegistry(ctx txn.Context, entityUUID string, chunks []*entity.Chunk) error {
	if err := s.Registry.DeleteByFieldInTx(ctx, entityUUID, bySourceEntityUUID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	_, err := s.Registry.SaveAllInTx(ctx, chunks)
	return err
}

// DeleteByEntityUUID evicts an entity's chunks from the in-memory index
// ahead of the delete transaction (spec.md §4.7, beforeDelete).
func (s *Service) DeleteByEntityUUID(entityUUID string) {
	s.evictFromIndex(entityUUID)
}

// DeleteByEntityUUIDInTx removes the registry rows inside the delete
// transaction (spec.md §4.7, beforeDeleteInTransaction).
func (s *Service) DeleteByEntityUUIDInTx(ctx txn.Context, entityUUID string) error {
	return s.Registry.DeleteByFieldInTx(ctx, entityUUID, bySourceEntityUUID)
}

func (s *Service) evictFromIndex(entityUUID string) {
	existing, err := s.Registry.FindByField(entityUUID, bySourceEntityUUID)
	if err != nil {
		logger.Warn("chunking: could not look up existing chunks for %s: %v", entityUUID, err)
		return
	}
	for _, c := range existing {
		s.Index.Delete(c.UUID)
	}
}
