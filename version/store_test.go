package version

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"entitystack/entity"
	"entitystack/storage/native"
	"entitystack/txn"
)

func newTestStore(t *testing.T) (*Store, *txn.NativeCoordinator) {
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
	return New(adapter), txn.NewNativeCoordinator(db)
}

func TestRecordVersionFirstSaveIsSnapshot(t *testing.T) {
	store, coord := newTestStore(t)
	err := coord.Transaction([]string{"entity_version"}, func(ctx txn.Context) error {
		_, err := store.RecordVersion(ctx, "note", "uuid-1", nil, []byte(`{"title":"a"}`), 5, "", "")
		return err
	})
	if err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}

	n, err := store.LatestVersionNumber("uuid-1")
	if err != nil {
		t.Fatalf("LatestVersionNumber: %v", err)
	}
	if n != 1 {
		t.Errorf("expected version 1, got %d", n)
	}
}

func TestRecordVersionSnapshotCadence(t *testing.T) {
	store, coord := newTestStore(t)
	states := []string{
		`{"title":"a"}`,
		`{"title":"b"}`,
		`{"title":"c"}`,
	}
	var prev []byte
	for _, s := range states {
		cur := []byte(s)
		err := coord.Transaction([]string{"entity_version"}, func(ctx txn.Context) error {
			_, err := store.RecordVersion(ctx, "note", "uuid-2", prev, cur, 2, "", "")
			return err
		})
		if err != nil {
			t.Fatalf("RecordVersion: %v", err)
		}
		prev = cur
	}

	n, err := store.LatestVersionNumber("uuid-2")
	if err != nil {
		t.Fatalf("LatestVersionNumber: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 versions recorded, got %d", n)
	}

	state, err := store.StateAt("uuid-2", 3)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(state, &decoded); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if decoded["title"] != "c" {
		t.Errorf("expected reconstructed state title=c, got %q", decoded["title"])
	}

	mid, err := store.StateAt("uuid-2", 2)
	if err != nil {
		t.Fatalf("StateAt(2): %v", err)
	}
	var midDecoded map[string]string
	if err := json.Unmarshal(mid, &midDecoded); err != nil {
		t.Fatalf("decode mid state: %v", err)
	}
	if midDecoded["title"] != "b" {
		t.Errorf("expected reconstructed state at version 2 to be title=b, got %q", midDecoded["title"])
	}
}

func TestLatestVersionNumberWithNoHistoryIsZero(t *testing.T) {
	store, _ := newTestStore(t)
	n, err := store.LatestVersionNumber("never-saved")
	if err != nil {
		t.Fatalf("LatestVersionNumber: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 for an entity with no history, got %d", n)
	}
}
