package entity

import "encoding/json"

// Edge is a directed, typed link between two entities. Identity is the
// composite (SourceUUID, TargetUUID, EdgeType); the edge adapter is
// responsible for enforcing that uniqueness (by backend index where one
// exists, by pre-insert check otherwise).
type Edge struct {
	Base
	SourceUUID string `json:"sourceUuid"`
	TargetUUID string `json:"targetUuid"`
	EdgeType   string `json:"edgeType"`
}

func (e *Edge) TypeName() string  { return "edge" }
func (e *Edge) TouchOnSave() bool { return true }

func (e *Edge) ToJSON() ([]byte, error) { return json.Marshal(e) }
func (e *Edge) FromJSON(data []byte) error { return json.Unmarshal(data, e) }

// Key returns the composite identity used for uniqueness checks.
func (e *Edge) Key() [3]string { return [3]string{e.SourceUUID, e.TargetUUID, e.EdgeType} }
