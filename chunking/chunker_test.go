package chunking

import (
	"strings"
	"testing"

	"entitystack/embedding"
	"entitystack/entity"
)

var _ embedding.Service = fakeEmbedder{}

func TestSentenceSplitBasic(t *testing.T) {
	got := sentenceSplit("One. Two! Three?")
	want := []string{"One.", "Two!", "Three?"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSentenceSplitSkipsAbbreviations(t *testing.T) {
	got := sentenceSplit("Dr. Smith met J. Doe. They left.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences (abbreviations must not split), got %v", got)
	}
	if got[0] != "Dr. Smith met J. Doe." {
		t.Errorf("unexpected first sentence: %q", got[0])
	}
	if got[1] != "They left." {
		t.Errorf("unexpected second sentence: %q", got[1])
	}
}

func TestSentenceSplitSkipsDecimalNumbers(t *testing.T) {
	got := sentenceSplit("Pi is about 3.14 and that is useful. Next fact.")
	if len(got) != 2 {
		t.Fatalf("expected the decimal point not to split a sentence, got %v", got)
	}
	if !strings.Contains(got[0], "3.14") {
		t.Errorf("expected the decimal to stay within the first sentence, got %q", got[0])
	}
}

func TestSentenceSplitEmptyInput(t *testing.T) {
	if got := sentenceSplit("   "); got != nil {
		t.Errorf("expected nil for blank input, got %v", got)
	}
}

// fakeEmbedder returns a deterministic, non-degenerate vector per distinct
// input so distance-based grouping in semanticChunk has something to
// differentiate on, without depending on a network embedding call.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%len(vec)] += float32(r % 7)
	}
	return vec
}

func (f fakeEmbedder) EmbedBatch(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.Embed(t)
	}
	return out
}

func TestSemanticChunkOneSentenceReturnsOneChunk(t *testing.T) {
	chunks := semanticChunk("A single short sentence.", presetFor(entity.PresetParent), fakeEmbedder{})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk for a one-sentence input, got %d: %+v", len(chunks), chunks)
	}
}

func TestSemanticChunkShortInputReturnsOneChunk(t *testing.T) {
	// Well under minChunkSize for either preset; must not be merged away
	// to nothing.
	chunks := semanticChunk("Short text here.", presetFor(entity.PresetParent), fakeEmbedder{})
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk for input shorter than minChunkSize, got %d", len(chunks))
	}
	if chunks[0].EndToken <= chunks[0].StartToken {
		t.Errorf("expected a non-empty token range, got %+v", chunks[0])
	}
}

func TestSemanticChunkEmptyInputReturnsNoChunks(t *testing.T) {
	chunks := semanticChunk("   ", presetFor(entity.PresetParent), fakeEmbedder{})
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %+v", chunks)
	}
}

func TestSemanticChunkLongInputProducesMultipleChunksWithOrderedOffsets(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog number ")
		sb.WriteString(strings.Repeat("x", i%5+1))
		sb.WriteString(". ")
	}
	chunks := semanticChunk(sb.String(), presetFor(entity.PresetParent), fakeEmbedder{})
	if len(chunks) < 2 {
		t.Fatalf("expected a long input to split into multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartToken < chunks[i-1].StartToken {
			t.Errorf("chunk %d starts before chunk %d: %+v vs %+v", i, i-1, chunks[i], chunks[i-1])
		}
	}
}

func TestPercentileBoundaries(t *testing.T) {
	vals := []float32{0.1, 0.5, 0.9}
	if p := percentile(vals, 0); p != 0.1 {
		t.Errorf("p0: expected 0.1, got %v", p)
	}
	if p := percentile(vals, 1); p != 0.9 {
		t.Errorf("p100: expected 0.9, got %v", p)
	}
	if p := percentile(nil, 0.5); p != 0 {
		t.Errorf("empty input: expected 0, got %v", p)
	}
}

