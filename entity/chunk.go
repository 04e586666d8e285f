package entity

import "encoding/json"

// Chunk is a metadata-only descriptor for a slice of a SemanticIndexable
// entity's source text. The chunk's embedding lives in the HNSW index,
// keyed by the chunk's UUID, not in this record.
type Chunk struct {
	Base
	SourceEntityUUID string      `json:"sourceEntityUuid"`
	SourceEntityType string      `json:"sourceEntityType"`
	StartToken       int         `json:"startToken"`
	EndToken         int         `json:"endToken"`
	Config           ChunkPreset `json:"config"`
}

func (c *Chunk) TypeName() string  { return "chunk" }
func (c *Chunk) TouchOnSave() bool { return false }

func (c *Chunk) ToJSON() ([]byte, error)    { return json.Marshal(c) }
func (c *Chunk) FromJSON(data []byte) error { return json.Unmarshal(data, c) }
