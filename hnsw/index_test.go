package hnsw

import "testing"

func TestAddAndSearchReturnsNearestFirst(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0, 0})
	ix.Add("b", []float32{0, 1, 0})
	ix.Add("c", []float32{0.9, 0.1, 0})

	got := ix.Search([]float32{1, 0, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d: %v", len(got), got)
	}
	if got[0].ID != "a" {
		t.Errorf("expected exact match %q first, got %q", "a", got[0].ID)
	}
	if got[0].Distance > got[1].Distance {
		t.Errorf("expected ascending distance order, got %v", got)
	}
}

func TestSearchKZeroReturnsEmpty(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0})
	if got := ix.Search([]float32{1, 0}, 0); len(got) != 0 {
		t.Errorf("expected no results for k=0, got %v", got)
	}
}

func TestDeleteRemovesFromSearchAndSize(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0})
	ix.Add("b", []float32{0, 1})
	ix.Delete("a")

	if ix.Size() != 1 {
		t.Fatalf("expected size 1 after delete, got %d", ix.Size())
	}
	for _, n := range ix.Search([]float32{1, 0}, 2) {
		if n.ID == "a" {
			t.Errorf("deleted id %q still returned by Search", n.ID)
		}
	}
}

func TestDeleteAbsentIDIsNoOp(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0})
	ix.Delete("does-not-exist")
	if ix.Size() != 1 {
		t.Errorf("expected size unchanged, got %d", ix.Size())
	}
}

func TestAddReplacesExistingVectorForSameID(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0})
	ix.Add("a", []float32{0, 1})

	if ix.Size() != 1 {
		t.Fatalf("expected one entry after re-adding the same id, got %d", ix.Size())
	}
	got := ix.Search([]float32{0, 1}, 1)
	if len(got) != 1 || got[0].Distance > 0.0001 {
		t.Errorf("expected the replaced vector to be searchable, got %v", got)
	}
}

func TestSaveLoadRoundTripAnswersSameTopKQueries(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0, 0})
	ix.Add("b", []float32{0, 1, 0})
	ix.Add("c", []float32{0, 0, 1})
	ix.Add("d", []float32{0.8, 0.2, 0})

	query := []float32{1, 0, 0}
	want := ix.Search(query, 3)

	blob, err := ix.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(blob)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := reloaded.Search(query, 3)

	if len(got) != len(want) {
		t.Fatalf("expected %d results after reload, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("result %d: expected id %q, got %q", i, want[i].ID, got[i].ID)
		}
	}
	if reloaded.Size() != ix.Size() {
		t.Errorf("expected reloaded size %d, got %d", ix.Size(), reloaded.Size())
	}
}

func TestMutationCounterTracksAddAndDeleteUntilReset(t *testing.T) {
	ix := New()
	ix.Add("a", []float32{1, 0})
	ix.Add("b", []float32{0, 1})
	ix.Delete("a")
	if ix.MutationsSinceFlush() != 3 {
		t.Errorf("expected 3 mutations, got %d", ix.MutationsSinceFlush())
	}
	if !ix.Dirty() {
		t.Error("expected index to be dirty after mutations")
	}
	ix.ResetMutationCounter()
	if ix.MutationsSinceFlush() != 0 || ix.Dirty() {
		t.Error("expected mutation counter and dirty flag cleared after reset")
	}
}
