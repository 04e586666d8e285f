package chunking

import (
	"sort"

	"entitystack/embedding"
)

// TextChunk is the chunker's raw output before it becomes a persisted
// entity.Chunk: a token-bounded slice of the source text plus the
// embedding computed for it.
type TextChunk struct {
	Text       string
	StartToken int
	EndToken   int
	Embedding  []float32
}

// semanticChunk runs the two-level semantic chunking algorithm of
// spec.md §4.4 step 1-7 for one preset: sentence split, windowize,
// embed, break on distance percentile, enforce min/max chunk size.
func semanticChunk(text string, preset Preset, embedder embedding.Service) []TextChunk {
	sentences := sentenceSplit(text)
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) == 1 {
		return []TextChunk{singleChunk(sentences[0], embedder)}
	}

	windows := windowize(sentences, preset.WindowSize, preset.Overlap)
	if len(windows) <= 1 {
		return []TextChunk{singleChunk(text, embedder)}
	}

	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Text
	}
	vectors := embedder.EmbedBatch(texts)

	dists := make([]float32, 0, len(windows)-1)
	for i := 0; i < len(windows)-1; i++ {
		a, b := vectors[i], vectors[i+1]
		if a == nil || b == nil {
			dists = append(dists, 0)
			continue
		}
		dists = append(dists, 1-embedding.CosineSimilarity(a, b))
	}
	threshold := percentile(dists, preset.BreakpointPercentile)

	groups := groupByBreakpoints(windows, dists, threshold)
	groups = enforceMinSize(groups, windows, preset.MinChunkSize)
	groups = enforceMaxSize(groups, windows, preset.MaxChunkSize)

	chunks := make([]TextChunk, 0, len(groups))
	for _, g := range groups {
		chunks = append(chunks, materialize(g, vectors, windows, embedder))
	}
	return chunks
}

func singleChunk(text string, embedder embedding.Service) TextChunk {
	return TextChunk{Text: text, StartToken: 0, EndToken: tokenCount(text), Embedding: embedder.Embed(text)}
}

// group is a contiguous run of window indices that belong to one chunk.
type group struct {
	start, end int // inclusive window index range
}

func groupByBreakpoints(windows []window, dists []float32, threshold float32) []group {
	var groups []group
	start := 0
	for i, d := range dists {
		if d >= threshold {
			groups = append(groups, group{start: start, end: i})
			start = i + 1
		}
	}
	groups = append(groups, group{start: start, end: len(windows) - 1})
	return groups
}

func groupTokens(g group, windows []window) int {
	return windows[g.end].EndToken - windows[g.start].StartToken
}

// enforceMinSize merges any chunk smaller than minSize into the previous
// chunk, per spec.md §4.4 step 6. The first chunk has no previous chunk to
// merge into, so an undersized first chunk merges forward instead.
func enforceMinSize(groups []group, windows []window, minSize int) []group {
	if len(groups) <= 1 {
		return groups
	}
	out := make([]group, 0, len(groups))
	for _, g := range groups {
		if len(out) > 0 && groupTokens(g, windows) < minSize {
			out[len(out)-1].end = g.end
			continue
		}
		out = append(out, g)
	}
	// An undersized first chunk has no previous chunk; merge it forward
	// into the second one instead.
	if len(out) > 1 && groupTokens(out[0], windows) < minSize {
		out[1].start = out[0].start
		out = out[1:]
	}
	return out
}

// enforceMaxSize splits any chunk larger than maxSize back down at window
// boundaries, greedily packing windows up to maxSize tokens per chunk (a
// single window larger than maxSize stays a chunk of its own).
// This operates at window granularity rather than the original
// breakpoint list because merging for enforceMinSize can erase which
// internal boundaries were "natural" breaks; window edges are the finest
// split points still available.
func enforceMaxSize(groups []group, windows []window, maxSize int) []group {
	var out []group
	for _, g := range groups {
		if groupTokens(g, windows) <= maxSize {
			out = append(out, g)
			continue
		}
		start := g.start
		for i := g.start + 1; i <= g.end; i++ {
			if groupTokens(group{start: start, end: i}, windows) > maxSize {
				out = append(out, group{start: start, end: i - 1})
				start = i
			}
		}
		out = append(out, group{start: start, end: g.end})
	}
	return out
}

func materialize(g group, vectors [][]float32, windows []window, embedder embedding.Service) TextChunk {
	var parts string
	for i := g.start; i <= g.end; i++ {
		if i > g.start {
			parts += " "
		}
		parts += windows[i].Text
	}
	start := windows[g.start].StartToken
	end := windows[g.end].EndToken
	vec := averageVectors(vectors[g.start : g.end+1])
	if vec == nil {
		vec = embedder.Embed(parts)
	}
	return TextChunk{Text: parts, StartToken: start, EndToken: end, Embedding: vec}
}

func averageVectors(vecs [][]float32) []float32 {
	var dim int
	for _, v := range vecs {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if dim == 0 {
		return nil
	}
	sum := make([]float32, dim)
	n := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += x
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float32(n)
	}
	return sum
}

// percentile returns the value at quantile q (0..1) of a copy of values,
// using linear interpolation between closest ranks. An empty slice
// returns 0; semanticChunk never passes one, since single-window input
// returns before any distances are computed.
func percentile(values []float32, q float64) float32 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float32(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := float32(pos - float64(lo))
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
