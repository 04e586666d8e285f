package entity

import "encoding/json"

// Note is a worked example entity type exercising every capability the
// core supports: embeddable (whole-note embedding), semantic-indexable
// (chunked + indexed body text), versionable (full delta history) and
// edgeable (can be linked to other nodes). Application code is expected
// to define its own entity types the same way.
type Note struct {
	Base
	Title string    `json:"title"`
	Body  string    `json:"body"`
	vec   []float32 `json:"-"` // not part of the JSON form; embeddings round-trip via the vector field below on the wire types that need it
	Vector []float32 `json:"vector,omitempty"`
}

func (n *Note) TypeName() string  { return "note" }
func (n *Note) TouchOnSave() bool { return true }

func (n *Note) ToJSON() ([]byte, error) {
	n.Vector = n.vec
	return json.Marshal(n)
}

func (n *Note) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, n); err != nil {
		return err
	}
	n.vec = n.Vector
	return nil
}

func (n *Note) ToEmbeddingInput() string { return n.Title + "\n" + n.Body }
func (n *Note) Embedding() []float32     { return n.vec }
func (n *Note) SetEmbedding(v []float32) { n.vec = v }

func (n *Note) ToChunkableInput() string    { return n.Body }
func (n *Note) ChunkPreset() ChunkPreset    { return PresetParent }

func (n *Note) SnapshotFrequency() int { return 5 }

func (n *Note) EdgeNodeType() string { return "note" }
