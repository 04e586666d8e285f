package handlers

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"entitystack/entity"
	"entitystack/storage/native"
	"entitystack/txn"
	"entitystack/version"
)

// fakeEdgeCollector is a minimal EdgeCollector double recording which
// uuids were deleted inside a transaction.
type fakeEdgeCollector struct {
	touching map[string][]string
	deleted  []string
}

func (f *fakeEdgeCollector) EdgesTouching(entityUUID string) ([]string, error) {
	return f.touching[entityUUID], nil
}

func (f *fakeEdgeCollector) DeleteByUUIDInTx(ctx txn.Context, edgeUUID string) error {
	f.deleted = append(f.deleted, edgeUUID)
	return nil
}

func TestEdgeCascadeDeleteHandlerCollectsThenDeletesInTransaction(t *testing.T) {
	edges := &fakeEdgeCollector{touching: map[string][]string{"n1": {"e1", "e2"}}}
	h := NewEdgeCascadeDeleteHandler(edges)
	note := &entity.Note{}
	note.SetUUID("n1")

	if err := h.BeforeDelete(note); err != nil {
		t.Fatalf("BeforeDelete: %v", err)
	}
	if err := h.BeforeDeleteInTransaction(nil, note); err != nil {
		t.Fatalf("BeforeDeleteInTransaction: %v", err)
	}
	if len(edges.deleted) != 2 {
		t.Errorf("expected both touching edges deleted, got %v", edges.deleted)
	}
}

func TestEdgeCascadeDeleteHandlerSkipsNonEdgeable(t *testing.T) {
	edges := &fakeEdgeCollector{}
	h := NewEdgeCascadeDeleteHandler(edges)
	nonEdgeable := &entity.Version{}
	nonEdgeable.SetUUID("v1")

	if err := h.BeforeDelete(nonEdgeable); err != nil {
		t.Fatalf("BeforeDelete: %v", err)
	}
	if err := h.BeforeDeleteInTransaction(nil, nonEdgeable); err != nil {
		t.Fatalf("BeforeDeleteInTransaction: %v", err)
	}
	if len(edges.deleted) != 0 {
		t.Errorf("a non-Edgeable entity must never trigger edge deletes, got %v", edges.deleted)
	}
}

func TestEmbeddableHandlerSetsEmbeddingFromText(t *testing.T) {
	h := NewEmbeddableHandler(fakeEmbedder{vec: []float32{0.1, 0.2}})
	n := &entity.Note{Title: "hello", Body: "world"}

	if err := h.BeforeSave(n); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if len(n.Embedding()) != 2 {
		t.Errorf("expected an embedding to be set, got %v", n.Embedding())
	}
}

func TestEmbeddableHandlerClearsEmbeddingForEmptyText(t *testing.T) {
	h := NewEmbeddableHandler(fakeEmbedder{vec: []float32{0.1}})
	n := &entity.Note{}
	n.SetEmbedding([]float32{9, 9})

	if err := h.BeforeSave(n); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if n.Embedding() != nil {
		t.Errorf("expected a blank note to clear any stale embedding, got %v", n.Embedding())
	}
}

type fakeEmbedder struct{ vec []float32 }

func (f fakeEmbedder) Embed(text string) []float32           { return f.vec }
func (f fakeEmbedder) EmbedBatch(texts []string) [][]float32 { return nil }

type fakeLoader struct{ prev []byte }

func (f fakeLoader) PreviousJSON(ctx txn.Context, uuid string) ([]byte, error) { return f.prev, nil }

func newVersionStore(t *testing.T) (*version.Store, *txn.NativeCoordinator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "versions.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	adapter, err := native.NewStore[*entity.Version](db, "entity_version", func() *entity.Version { return &entity.Version{} })
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return version.New(adapter), txn.NewNativeCoordinator(db)
}

func TestVersionableHandlerRecordsVersionInsideTransaction(t *testing.T) {
	store, coord := newVersionStore(t)
	h := NewVersionableHandler(store, fakeLoader{prev: nil}, true)
	n := &entity.Note{Title: "v1"}
	n.SetUUID("n1")

	if err := h.BeforeSave(n); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	err := coord.Transaction([]string{"entity_version"}, func(ctx txn.Context) error {
		return h.BeforeSaveInTransaction(ctx, n)
	})
	if err != nil {
		t.Fatalf("BeforeSaveInTransaction: %v", err)
	}

	latest, err := store.LatestVersionNumber("n1")
	if err != nil {
		t.Fatalf("LatestVersionNumber: %v", err)
	}
	if latest != 1 {
		t.Errorf("expected a version to be recorded, got version number %d", latest)
	}
}

type fakeFlusher struct{ calls int }

func (f *fakeFlusher) AfterMutation() error { f.calls++; return nil }

func TestSemanticIndexableHandlerFlushesOnAfterSave(t *testing.T) {
	flusher := &fakeFlusher{}
	h := &SemanticIndexableHandler{Flusher: flusher}
	h.AfterSave(&entity.Note{})
	if flusher.calls != 1 {
		t.Errorf("expected AfterMutation to be called once, got %d", flusher.calls)
	}
}

func TestSemanticIndexableHandlerAfterSaveToleratesNilFlusher(t *testing.T) {
	h := &SemanticIndexableHandler{}
	h.AfterSave(&entity.Note{}) // must not panic with no Flusher configured
}
