package web

import (
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"entitystack/entity"
	"entitystack/errors"
	"entitystack/txn"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bbolt")
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) *Store[*entity.Note] {
	t.Helper()
	store, err := NewStore[*entity.Note](openTestDB(t), "note", func() *entity.Note { return &entity.Note{} })
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestSaveAssignsIDAndUUID(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(&entity.Note{Title: "hello"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.GetID() == 0 {
		t.Error("expected a non-zero id")
	}
	if saved.GetUUID() == "" {
		t.Error("expected a uuid")
	}

	byID, err := s.FindByID(saved.GetID())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if entity.IsNil(byID) || byID.GetUUID() != saved.GetUUID() {
		t.Error("id index did not resolve back to the saved row")
	}
}

func TestSaveNoTouchLeavesUpdatedAtAlone(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(&entity.Note{Title: "v1"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	firstUpdatedAt := saved.GetUpdatedAt()

	saved.Title = "v2"
	again, err := s.SaveNoTouch(saved)
	if err != nil {
		t.Fatalf("SaveNoTouch: %v", err)
	}
	if !again.GetUpdatedAt().Equal(firstUpdatedAt) {
		t.Errorf("SaveNoTouch must not refresh UpdatedAt: got %v, want %v", again.GetUpdatedAt(), firstUpdatedAt)
	}
}

func TestFindByUUIDMissingReturnsNilNotError(t *testing.T) {
	s := newTestStore(t)
	n, err := s.FindByUUID("missing")
	if err != nil {
		t.Fatalf("FindByUUID on a missing row must not error, got %v", err)
	}
	if !entity.IsNil(n) {
		t.Error("expected a nil entity for a missing uuid")
	}
}

func TestGetByUUIDMissingRaisesNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByUUID("missing")
	pe, ok := err.(*errors.PersistenceError)
	if !ok || pe.Kind != errors.KindEntityNotFound {
		t.Errorf("expected EntityNotFound, got %v", err)
	}
}

func TestDeleteRemovesBothIndexes(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(&entity.Note{Title: "gone soon"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err := s.Delete(saved.GetID())
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}

	byUUID, err := s.FindByUUID(saved.GetUUID())
	if err != nil || !entity.IsNil(byUUID) {
		t.Errorf("expected the uuid bucket entry gone after Delete, got %#v err=%v", byUUID, err)
	}
	byID, err := s.FindByID(saved.GetID())
	if err != nil || !entity.IsNil(byID) {
		t.Errorf("expected the id index entry gone after Delete, got %#v err=%v", byID, err)
	}
}

func TestFindAllCount(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Save(&entity.Note{Title: "n"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
	all, err := s.FindAll()
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 rows from FindAll, got %d", len(all))
	}
}

// TestSyncLookupsFailFastInsideTransaction exercises the S6 scenario from
// spec.md §8: findByIdInTx and its siblings must reject immediately,
// before touching the transaction, rather than silently misbehaving.
func TestSyncLookupsFailFastInsideTransaction(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(&entity.Note{Title: "hello"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	coord := txn.NewWebCoordinator(s.db)
	err = coord.Transaction(s.Buckets(), func(ctx txn.Context) error {
		_, lookupErr := s.FindByIDInTx(ctx, saved.GetID())
		if lookupErr == nil {
			t.Fatal("expected FindByIDInTx to fail on the web backend")
		}
		pe, ok := lookupErr.(*errors.PersistenceError)
		if !ok || pe.Kind != errors.KindQueryError {
			t.Errorf("expected a QueryError, got %v", lookupErr)
		}
		if _, err := s.FindAllInTx(ctx); err == nil {
			t.Error("expected FindAllInTx to fail on the web backend")
		}
		if err := s.DeleteInTx(ctx, saved.GetID()); err == nil {
			t.Error("expected DeleteInTx to fail on the web backend")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
}
