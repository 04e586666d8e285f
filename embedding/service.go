// Package embedding defines the EmbeddingService boundary the core
// consumes (spec.md §6) and ships one minimal, dependency-free
// implementation useful for tests and offline operation. A production
// deployment injects its own Service backed by a real embedding API;
// that client is explicitly out of scope for this core.
package embedding

import (
	"hash/fnv"
	"math"
	"strings"
)

// Service embeds text into fixed-dimension vectors. A nil return from
// Embed means "service unavailable" — callers treat that as "skip
// embedding for this entity this time", never as an error.
type Service interface {
	Embed(text string) []float32
	EmbedBatch(texts []string) [][]float32
}

// HashService is a deterministic, offline fallback: it hashes each
// lower-cased word into a fixed-width vector and L2-normalizes it, giving
// inputs that share vocabulary a nonzero cosine similarity without
// calling out to any network service. It exists for the same reason the
// amanmcp indexing runner keeps an "Offline: use static embeddings
// instead of neural embedder" mode — tests and air-gapped runs need a
// real implementation of the interface, not a mock.
type HashService struct {
	Dim int
}

func NewHashService(dim int) *HashService {
	if dim <= 0 {
		dim = 384
	}
	return &HashService{Dim: dim}
}

func (s *HashService) Embed(text string) []float32 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	vec := make([]float32, s.Dim)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32()) % s.Dim
		if idx < 0 {
			idx += s.Dim
		}
		vec[idx] += 1
	}
	normalize(vec)
	return vec
}

func (s *HashService) EmbedBatch(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.Embed(t)
	}
	return out
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// CosineSimilarity is the canonical similarity function spec.md §6 names:
// cosSim(a,b) = dot(a,b)/(‖a‖·‖b‖).
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
