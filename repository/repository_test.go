package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"entitystack/edges"
	"entitystack/embedding"
	"entitystack/embedqueue"
	"entitystack/entity"
	"entitystack/errors"
	"entitystack/handlers"
	"entitystack/storage"
	"entitystack/storage/native"
	"entitystack/txn"
	"entitystack/version"
)

// Doc is a minimal Versionable-only entity used to isolate the version
// history scenarios (spec.md §8 S1/S2) from embedding and chunking noise.
type Doc struct {
	entity.Base
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (d *Doc) TypeName() string             { return "doc" }
func (d *Doc) TouchOnSave() bool            { return true }
func (d *Doc) ToJSON() ([]byte, error)      { return json.Marshal(d) }
func (d *Doc) FromJSON(data []byte) error   { return json.Unmarshal(data, d) }
func (d *Doc) SnapshotFrequency() int       { return 5 }

// directLoader implements handlers.PreviousStateLoader by reading straight
// from an adapter, the same way Repository.PreviousJSON does, without
// needing a fully constructed Repository to hand to the handler chain.
type directLoader[T entity.Entity] struct{ adapter storage.Adapter[T] }

func (d directLoader[T]) PreviousJSON(ctx txn.Context, uuid string) ([]byte, error) {
	prev, err := d.adapter.FindByUUIDInTx(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if entity.IsNil(prev) {
		return nil, nil
	}
	return prev.ToJSON()
}

func openDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// failingVersionAdapter wraps a real version store but fails SaveInTx for
// one specific version number, to exercise the mid-transaction rollback
// scenario (spec.md §8 S2) deterministically.
type failingVersionAdapter struct {
	*native.Store[*entity.Version]
	failAtVersion int
}

func (f *failingVersionAdapter) SaveInTx(ctx txn.Context, v *entity.Version) (*entity.Version, error) {
	if v.VersionNumber == f.failAtVersion {
		return nil, fmt.Errorf("injected failure at version %d", f.failAtVersion)
	}
	return f.Store.SaveInTx(ctx, v)
}

func newDocHarness(t *testing.T, versionAdapter version.Adapter) (*Repository[*Doc], *native.Store[*Doc], *version.Store) {
	t.Helper()
	db := openDB(t, "doc.sqlite")

	docStore, err := native.NewStore[*Doc](db, "doc", func() *Doc { return &Doc{} })
	if err != nil {
		t.Fatalf("NewStore[Doc]: %v", err)
	}

	verRows, err := native.NewStore[*entity.Version](db, "entity_version", func() *entity.Version { return &entity.Version{} })
	if err != nil {
		t.Fatalf("NewStore[Version]: %v", err)
	}
	var adapter version.Adapter = verRows
	if versionAdapter != nil {
		adapter = versionAdapter
	}
	verStore := version.New(adapter)

	coord := txn.NewNativeCoordinator(db)
	vh := handlers.NewVersionableHandler(verStore, directLoader[*Doc]{adapter: docStore}, true)

	repo := New(Config[*Doc]{
		EntityType:     "doc",
		Adapter:        docStore,
		Handlers:       []handlers.Handler{vh},
		Coordinator:    coord,
		HasCoordinator: true,
		SaveStores:     []string{"doc", "entity_version"},
		DeleteStores:   []string{"doc"},
	})
	return repo, docStore, verStore
}

// TestVersionedSaveAndReconstruction implements spec.md §8 S1.
func TestVersionedSaveAndReconstruction(t *testing.T) {
	repo, docStore, verStore := newDocHarness(t, nil)

	d1 := &Doc{Title: "A", Body: "1"}
	if _, err := repo.Save(d1); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	uuid := d1.GetUUID()

	d2, err := docStore.FindByUUID(uuid)
	if err != nil {
		t.Fatalf("FindByUUID before save 2: %v", err)
	}
	d2.Body = "2"
	if _, err := repo.Save(d2); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	d3, err := docStore.FindByUUID(uuid)
	if err != nil {
		t.Fatalf("FindByUUID before save 3: %v", err)
	}
	d3.Title = "B"
	if _, err := repo.Save(d3); err != nil {
		t.Fatalf("save 3: %v", err)
	}

	latest, err := verStore.LatestVersionNumber(uuid)
	if err != nil {
		t.Fatalf("LatestVersionNumber: %v", err)
	}
	if latest != 3 {
		t.Fatalf("expected 3 versions, got %d", latest)
	}

	versions, err := verStore.Adapter.FindByField(uuid, func(v *entity.Version) string { return v.EntityUUID })
	if err != nil {
		t.Fatalf("FindByField: %v", err)
	}
	byNumber := map[int]*entity.Version{}
	for _, v := range versions {
		byNumber[v.VersionNumber] = v
	}

	if !byNumber[1].IsSnapshot {
		t.Error("expected version 1 to carry a full snapshot")
	}
	if byNumber[2].IsSnapshot {
		t.Error("expected version 2 to be a delta, not a snapshot")
	}
	if got := byNumber[2].ChangedFields; len(got) != 1 || got[0] != "body" {
		t.Errorf("expected version 2 to change only body, got %v", got)
	}
	if got := byNumber[3].ChangedFields; len(got) != 1 || got[0] != "title" {
		t.Errorf("expected version 3 to change only title, got %v", got)
	}

	state, err := verStore.StateAt(uuid, 2)
	if err != nil {
		t.Fatalf("StateAt(2): %v", err)
	}
	var reconstructed Doc
	if err := json.Unmarshal(state, &reconstructed); err != nil {
		t.Fatalf("unmarshal reconstructed state: %v", err)
	}
	if reconstructed.Title != "A" || reconstructed.Body != "2" {
		t.Errorf("expected stateAt(2) == {A, 2}, got {%s, %s}", reconstructed.Title, reconstructed.Body)
	}
}

// TestRollbackOnTransactionalFailure implements spec.md §8 S2.
func TestRollbackOnTransactionalFailure(t *testing.T) {
	db := openDB(t, "doc.sqlite")
	docStore, err := native.NewStore[*Doc](db, "doc", func() *Doc { return &Doc{} })
	if err != nil {
		t.Fatalf("NewStore[Doc]: %v", err)
	}
	verRows, err := native.NewStore[*entity.Version](db, "entity_version", func() *entity.Version { return &entity.Version{} })
	if err != nil {
		t.Fatalf("NewStore[Version]: %v", err)
	}
	faulty := &failingVersionAdapter{Store: verRows, failAtVersion: 2}
	verStore := version.New(faulty)

	coord := txn.NewNativeCoordinator(db)
	vh := handlers.NewVersionableHandler(verStore, directLoader[*Doc]{adapter: docStore}, true)
	repo := New(Config[*Doc]{
		EntityType:     "doc",
		Adapter:        docStore,
		Handlers:       []handlers.Handler{vh},
		Coordinator:    coord,
		HasCoordinator: true,
		SaveStores:     []string{"doc", "entity_version"},
		DeleteStores:   []string{"doc"},
	})

	d1 := &Doc{Title: "A", Body: "1"}
	if _, err := repo.Save(d1); err != nil {
		t.Fatalf("save 1 should succeed: %v", err)
	}
	uuid := d1.GetUUID()

	d2, err := docStore.FindByUUID(uuid)
	if err != nil {
		t.Fatalf("FindByUUID: %v", err)
	}
	d2.Body = "2"
	_, err = repo.Save(d2)
	if err == nil {
		t.Fatal("expected save 2 to fail")
	}
	if !errors.Is(err, errors.KindTransactionError) {
		t.Errorf("expected a TransactionError, got %v", err)
	}

	persisted, err := docStore.FindByUUID(uuid)
	if err != nil {
		t.Fatalf("FindByUUID after failed save: %v", err)
	}
	if persisted.Body != "1" {
		t.Errorf("expected the row to remain at save 1's state, got body=%q", persisted.Body)
	}

	latest, err := verStore.LatestVersionNumber(uuid)
	if err != nil {
		t.Fatalf("LatestVersionNumber: %v", err)
	}
	if latest != 1 {
		t.Errorf("expected version history to remain at 1, got %d", latest)
	}
}

// newNoteHarness wires a Note repository with the edge cascade-delete
// handler plus either the synchronous embeddable handler or, with
// withQueue, an embedding queue in its place (no semantic or versionable
// handler), for cascade delete (S3) and background embedding fill-in (S5).
func newNoteHarness(t *testing.T, withQueue bool) (*Repository[*entity.Note], *native.Store[*entity.Note], *edges.Service, *embedqueue.Queue) {
	t.Helper()
	db := openDB(t, "note.sqlite")

	noteStore, err := native.NewStore[*entity.Note](db, "note", func() *entity.Note { return &entity.Note{} })
	if err != nil {
		t.Fatalf("NewStore[Note]: %v", err)
	}
	edgeStore, err := native.NewStore[*entity.Edge](db, "edge", func() *entity.Edge { return &entity.Edge{} })
	if err != nil {
		t.Fatalf("NewStore[Edge]: %v", err)
	}
	edgeSvc := edges.New(edgeStore)

	coord := txn.NewNativeCoordinator(db)
	edgeHandler := handlers.NewEdgeCascadeDeleteHandler(edgeSvc)

	hs := []handlers.Handler{edgeHandler}

	var queue *embedqueue.Queue
	if withQueue {
		taskStore, err := native.NewStore[*entity.EmbeddingTask](db, "embedding_task", func() *entity.EmbeddingTask { return &entity.EmbeddingTask{} })
		if err != nil {
			t.Fatalf("NewStore[EmbeddingTask]: %v", err)
		}
		embedder := embedding.NewHashService(8)
		queue = embedqueue.New(taskStore, embedder)
	} else {
		hs = append(hs, handlers.NewEmbeddableHandler(embedding.NewHashService(8)))
	}

	repo := New(Config[*entity.Note]{
		EntityType:     "note",
		Adapter:        noteStore,
		Handlers:       hs,
		Coordinator:    coord,
		HasCoordinator: true,
		SaveStores:     []string{"note"},
		DeleteStores:   []string{"note", "edge"},
		Queue:          queue,
	})
	if withQueue {
		queue.RegisterEntityType("note", repo)
	}
	return repo, noteStore, edgeSvc, queue
}

// TestCascadeDelete implements spec.md §8 S3.
func TestCascadeDelete(t *testing.T) {
	repo, _, edgeSvc, _ := newNoteHarness(t, false)

	a := &entity.Note{Title: "A"}
	b := &entity.Note{Title: "B"}
	if _, err := repo.Save(a); err != nil {
		t.Fatalf("save A: %v", err)
	}
	if _, err := repo.Save(b); err != nil {
		t.Fatalf("save B: %v", err)
	}

	if _, err := edgeSvc.Create(a.GetUUID(), b.GetUUID(), "links_to"); err != nil {
		t.Fatalf("create edge A->B: %v", err)
	}
	if _, err := edgeSvc.Create(b.GetUUID(), a.GetUUID(), "references"); err != nil {
		t.Fatalf("create edge B->A: %v", err)
	}

	ok, err := repo.Delete(a.GetUUID())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatal("expected Delete to report success")
	}

	found, err := repo.FindByUUID(a.GetUUID())
	if err != nil {
		t.Fatalf("FindByUUID: %v", err)
	}
	if !entity.IsNil(found) {
		t.Errorf("expected A to be gone, got %+v", found)
	}

	bySource, err := edgeSvc.GetBySource(a.GetUUID())
	if err != nil {
		t.Fatalf("GetBySource: %v", err)
	}
	if len(bySource) != 0 {
		t.Errorf("expected no edges sourced from A, got %v", bySource)
	}
	byTarget, err := edgeSvc.GetByTarget(a.GetUUID())
	if err != nil {
		t.Fatalf("GetByTarget: %v", err)
	}
	if len(byTarget) != 0 {
		t.Errorf("expected no edges targeting A, got %v", byTarget)
	}
}

func TestDeleteNonexistentUUIDReturnsFalseNoError(t *testing.T) {
	repo, _, _, _ := newNoteHarness(t, false)
	ok, err := repo.Delete("does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for a uuid that was never saved")
	}
}

// TestBackgroundEmbeddingFillIn implements spec.md §8 S5.
func TestBackgroundEmbeddingFillIn(t *testing.T) {
	repo, noteStore, _, queue := newNoteHarness(t, true)

	n := &entity.Note{Title: "hello", Body: "world"}
	if _, err := repo.Save(n); err != nil {
		t.Fatalf("Save: %v", err)
	}
	savedAt := n.GetUpdatedAt()

	persisted, err := noteStore.FindByUUID(n.GetUUID())
	if err != nil {
		t.Fatalf("FindByUUID: %v", err)
	}
	if persisted.Embedding() != nil {
		t.Fatalf("expected no embedding immediately after save, got %v", persisted.Embedding())
	}

	pending, err := queue.Tasks.FindAll()
	if err != nil {
		t.Fatalf("FindAll tasks: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != entity.TaskPending {
		t.Fatalf("expected exactly one pending task, got %#v", pending)
	}

	processed, err := queue.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if processed != 1 {
		t.Errorf("expected 1 task processed, got %d", processed)
	}

	filled, err := noteStore.FindByUUID(n.GetUUID())
	if err != nil {
		t.Fatalf("FindByUUID after flush: %v", err)
	}
	if len(filled.Embedding()) == 0 {
		t.Error("expected an embedding to be filled in after flush")
	}
	if !filled.GetUpdatedAt().Equal(savedAt) {
		t.Errorf("expected UpdatedAt unchanged by the background fill-in: was %v, now %v", savedAt, filled.GetUpdatedAt())
	}

	all, err := queue.Tasks.FindAll()
	if err != nil {
		t.Fatalf("FindAll tasks after flush: %v", err)
	}
	if len(all) != 1 || all[0].Status != entity.TaskCompleted {
		t.Errorf("expected the task to be completed, got %#v", all)
	}
}

func TestSemanticSearchWithoutVectorAdapterReturnsEmpty(t *testing.T) {
	repo, _, _, _ := newNoteHarness(t, false)
	got, err := repo.SemanticSearch([]float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results without a vector adapter, got %v", got)
	}
}
